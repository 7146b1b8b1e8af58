package blob

import (
	"context"
	"errors"
	"io"

	"voicedesk/internal/config"
)

// Store abstracts where call recordings live.
//
// Keys are deterministic (derived from the vendor call id), so writing the
// same key twice overwrites rather than duplicates. That property is what
// makes audio retrieval safe to repeat.
type Store interface {
	Read(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

var (
	ErrInvalidKey = errors.New("blob: invalid key")
	ErrNotFound   = errors.New("blob: not found")
)

// Open builds a Store from config. Kind is validated by config.Validate,
// so an unknown kind here is a programming error.
func Open(cfg config.BlobConfig) (Store, error) {
	switch cfg.Kind {
	case "minio":
		return NewMinioStore(cfg)
	case "local":
		return NewLocalStore(cfg.LocalRoot), nil
	default:
		return nil, errors.New("blob: unknown store kind " + cfg.Kind)
	}
}
