package encoding

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/sentrylabs/fim/pkg/logging"
)

// LoadAndUnmarshalYAML loads data from the specified path and decodes it into
// the specified structure.
func LoadAndUnmarshalYAML(path string, value interface{}) error {
	return LoadAndUnmarshal(path, func(data []byte) error {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		return decoder.Decode(value)
	})
}

// MarshalAndSaveYAML marshals the specified value as YAML and saves it
// atomically to the specified path.
func MarshalAndSaveYAML(path string, logger *logging.Logger, value interface{}) error {
	return MarshalAndSave(path, logger, func() ([]byte, error) {
		return yaml.Marshal(value)
	})
}
