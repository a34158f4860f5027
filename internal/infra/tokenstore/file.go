package tokenstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// FileConfig represents settings of the YAML file store.
type FileConfig struct {
	Path string `mapstructure:"path" default:"config/token.yaml" validate:"required"`
}

// state is the on-disk layout of the YAML file store.
type state struct {
	Token string `yaml:"token,omitempty"`
}

// FileStore keeps the token in a small YAML file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored token, or an empty string when no file exists.
func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to read token file")
	}

	var st state
	if err := yaml.Unmarshal(data, &st); err != nil {
		return "", errors.Wrap(err, "failed to parse token file")
	}
	return st.Token, nil
}

// Save writes the token, replacing the file atomically.
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(state{Token: token})
}

// Clear removes the stored token.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "failed to remove token file")
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) write(st state) error {
	data, err := yaml.Marshal(&st)
	if err != nil {
		return errors.Wrap(err, "failed to encode token file")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return errors.Wrap(err, "failed to create token directory")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "failed to replace token file")
	}
	return nil
}
