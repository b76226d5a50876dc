package fim

import (
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"

	"github.com/sentrylabs/fim/pkg/stream"
)

// waitCloser adapts an *exec.Cmd's Wait method to io.Closer, reporting a
// non-zero exit as an error once the caller is done reading the command's
// output.
type waitCloser struct {
	command *exec.Cmd
}

// Close implements io.Closer.Close.
func (w *waitCloser) Close() error {
	if err := w.command.Wait(); err != nil {
		return errors.Wrap(err, "prefilter command exited with error")
	}
	return nil
}

// OpenForHash opens path for hashing, either directly or, if prefilterCmd is
// set, by spawning that command with path as its final argument and hashing
// its standard output instead. The returned closer both closes the stream
// and (for the prefilter case) reaps the child process; bytes already read
// before a non-zero exit are still considered consumed.
func OpenForHash(path string, prefilterCmd string) (io.Reader, io.Closer, error) {
	if prefilterCmd == "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unable to open file")
		}
		return file, file, nil
	}

	command := exec.Command(prefilterCmd, path)
	stdout, err := command.StdoutPipe()
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to create prefilter stdout pipe")
	}
	if err := command.Start(); err != nil {
		return nil, nil, errors.Wrap(err, "unable to start prefilter command")
	}

	closer := stream.NewMultiCloser(stdout, &waitCloser{command})
	return stdout, closer, nil
}
