package objects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrNotFound      = errors.New("object not found")
	ErrNotSupported  = errors.New("operation not supported")
	ErrInvalidKey    = errors.New("invalid object key")
	ErrAlreadyExists = errors.New("object already exists")
)

// ObjectStore defines the interface for interacting with object storage
type ObjectStore interface {
	// Put stores an object and returns the key
	Put(ctx context.Context, key string, data io.Reader, contentType string) error

	// Get retrieves an object
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns a pre-signed URL for accessing the object (optional)
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Delete removes an object
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// List objects with a prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo contains metadata about an object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type"`
}

// RealPathReporter is implemented by stores rooted at a real filesystem
// directory, letting a filesystem watcher discover what to watch without
// the caller tracking the root separately from the store that owns it.
type RealPathReporter interface {
	BasePath() string
}

// ObjectStoreConfig contains configuration for object store implementations
type ObjectStoreConfig struct {
	Type   string            `json:"type"` // "s3", "gcs", "filesystem", "memory"
	Config map[string]string `json:"config"`
}

// NewObjectStore creates a new object store based on the provided
// configuration. If Config["pack_path"] is set, the primary store is
// mounted at the root of a MountedStore alongside a read-only pack
// mounted at Config["pack_mount_prefix"] (default "packs"), matching the
// "mounted prefixes resolve to either a real filesystem directory, a
// read-only pack, or a virtual directory" contract.
func NewObjectStore(config ObjectStoreConfig) (ObjectStore, error) {
	primary, err := newBackingStore(config)
	if err != nil {
		return nil, err
	}

	packPath := config.Config["pack_path"]
	if packPath == "" {
		return primary, nil
	}

	packStore, err := NewPackObjectStore(packPath)
	if err != nil {
		return nil, fmt.Errorf("mount pack %q: %w", packPath, err)
	}

	prefix := config.Config["pack_mount_prefix"]
	if prefix == "" {
		prefix = "packs"
	}

	mounted := NewMountedStore()
	if err := mounted.Mount("", primary); err != nil {
		return nil, err
	}
	if err := mounted.Mount(prefix, packStore); err != nil {
		return nil, err
	}
	return mounted, nil
}

func newBackingStore(config ObjectStoreConfig) (ObjectStore, error) {
	switch config.Type {
	case "filesystem":
		basePath := config.Config["base_path"]
		if basePath == "" {
			basePath = "./objects"
		}
		return NewFilesystemObjectStore(basePath), nil
	case "memory":
		return NewMemoryObjectStore(), nil
	case "s3":
		return NewS3ObjectStore(S3Config{
			Bucket:    config.Config["bucket"],
			Prefix:    config.Config["prefix"],
			Region:    config.Config["region"],
			Endpoint:  config.Config["endpoint"],
			AccessKey: config.Config["access_key"],
			SecretKey: config.Config["secret_key"],
		})
	case "gcs":
		return nil, errors.New("GCS object store not implemented yet")
	default:
		return nil, errors.New("unsupported object store type: " + config.Type)
	}
}
