package sink

import (
	"context"
	"io"

	"github.com/Microsoft/go-winio"
	"github.com/pkg/errors"
)

// dial connects to a named pipe at address (e.g. `\\.\pipe\fim-syscheck`).
func dial(address string) (io.WriteCloser, error) {
	connection, err := winio.DialPipeContext(context.Background(), address)
	if err != nil {
		return nil, errors.Wrap(err, "unable to dial named pipe")
	}
	return connection, nil
}
