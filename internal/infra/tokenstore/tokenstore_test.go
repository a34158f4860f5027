package tokenstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	tests := []struct {
		name     string
		newStore func(t *testing.T) Store
	}{
		{
			name: "yaml",
			newStore: func(t *testing.T) Store {
				s, err := New("yaml", map[string]any{"path": filepath.Join(t.TempDir(), "state", "token.yaml")})
				require.NoError(t, err)
				return s
			},
		},
		{
			name: "bolt",
			newStore: func(t *testing.T) Store {
				s, err := New("bolt", map[string]any{"path": filepath.Join(t.TempDir(), "state", "token.db")})
				require.NoError(t, err)
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.newStore(t)
			defer s.Close()

			token, err := s.Load()
			require.NoError(t, err)
			assert.Empty(t, token, "nothing stored yet")

			require.NoError(t, s.Save("refresh-token-1"))
			token, err = s.Load()
			require.NoError(t, err)
			assert.Equal(t, "refresh-token-1", token)

			require.NoError(t, s.Save("refresh-token-2"))
			token, err = s.Load()
			require.NoError(t, err)
			assert.Equal(t, "refresh-token-2", token)

			require.NoError(t, s.Clear())
			token, err = s.Load()
			require.NoError(t, err)
			assert.Empty(t, token)

			assert.NoError(t, s.Clear(), "clearing twice is fine")
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.yaml")
	require.NoError(t, NewFileStore(path).Save("persisted"))

	token, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unclosed"), 0600))

	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestBoltStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.db")
	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save("persisted"))
	require.NoError(t, s.Close())

	s, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer s.Close()
	token, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "persisted", token)
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New("redis", nil)
	assert.Error(t, err)
}

func TestNew_DefaultPath(t *testing.T) {
	s, err := New("yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, "config/token.yaml", s.(*FileStore).path)
}
