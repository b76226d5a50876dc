// +build !windows

package sink

import (
	"io"
	"net"

	"github.com/pkg/errors"
)

// dial connects to a Unix domain socket at address.
func dial(address string) (io.WriteCloser, error) {
	connection, err := net.Dial("unix", address)
	if err != nil {
		return nil, errors.Wrap(err, "unable to dial unix socket")
	}
	return connection, nil
}
