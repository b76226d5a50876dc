package filesystem

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// DataDirectoryName is the name of the agent's data directory inside the
	// current user's home directory.
	DataDirectoryName = ".fim"

	// ConfigurationName is the name of the agent's configuration file inside
	// the user's home directory.
	ConfigurationName = ".fim.yml"

	// DatabaseDirectoryName is the subdirectory of the data directory in
	// which the integrity database is stored.
	DatabaseDirectoryName = "db"

	// LogDirectoryName is the subdirectory of the data directory in which
	// rotated log output is stored.
	LogDirectoryName = "log"
)

// HomeDirectory is the cached path to the current user's home directory.
var HomeDirectory string

// DataDirectoryPath is the path to the agent's data directory. It is
// computed once at startup and should not be changed afterward.
var DataDirectoryPath string

// ConfigurationPath is the path to the agent's default configuration file.
var ConfigurationPath string

func init() {
	h, err := os.UserHomeDir()
	if err != nil {
		panic(errors.Wrap(err, "unable to query user's home directory"))
	} else if h == "" {
		panic(errors.New("home directory path empty"))
	}
	HomeDirectory = h
	DataDirectoryPath = filepath.Join(HomeDirectory, DataDirectoryName)
	ConfigurationPath = filepath.Join(HomeDirectory, ConfigurationName)
}

// DataSubpath computes (and optionally creates) a subdirectory inside the
// agent's data directory.
func DataSubpath(create bool, pathComponents ...string) (string, error) {
	result := filepath.Join(DataDirectoryPath, filepath.Join(pathComponents...))
	if create {
		if err := os.MkdirAll(result, 0700); err != nil {
			return "", errors.Wrap(err, "unable to create subpath")
		}
	}
	return result, nil
}
