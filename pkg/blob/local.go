package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes recordings under a root directory. Intended for local
// and dev environments; production should use the minio store.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// resolve joins key under root and rejects path escapes.
func (s *LocalStore) resolve(key string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	name := filepath.Clean(filepath.Join(root, filepath.FromSlash(key)))
	if !strings.HasPrefix(name, root+string(os.PathSeparator)) {
		return "", ErrInvalidKey
	}
	return name, nil
}

func (s *LocalStore) Read(_ context.Context, key string) (io.ReadCloser, int64, error) {
	name, err := s.resolve(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

func (s *LocalStore) Write(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	name, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	// Write to a temp file first so a crashed write never leaves a
	// half-recorded blob at the final key.
	tmp := name + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	name, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	name, err := s.resolve(key)
	if err != nil {
		return err
	}
	return os.Remove(name)
}

func (s *LocalStore) PublicURL(key string) string {
	// Local blobs are only reachable through the API's audio endpoint.
	return "/v1/recordings/" + key
}
