package objects

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/catalystcommunity/enginecore/internal/resource/pack"
)

// PackObjectStore adapts a read-only resource pack into the ObjectStore
// contract, so a mounted pack is indistinguishable from a filesystem or
// memory mount to the scanner and hot-reload classification path. Packs
// are immutable for the life of the process once opened, so Put/Delete
// always fail with ErrNotSupported.
type PackObjectStore struct {
	pack *pack.Pack
}

// NewPackObjectStore mounts the pack file at path read-only.
func NewPackObjectStore(path string) (*PackObjectStore, error) {
	p, err := pack.Open(path)
	if err != nil {
		return nil, err
	}
	return &PackObjectStore{pack: p}, nil
}

// Put always fails: a mounted pack is read-only.
func (s *PackObjectStore) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	return ErrNotSupported
}

// Get returns the pack's pre-measured payload range for key.
func (s *PackObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := s.pack.Read(key)
	if err != nil {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// GetURL is not supported; packs are opened as local files only.
func (s *PackObjectStore) GetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "", ErrNotSupported
}

// Delete always fails: a mounted pack is read-only.
func (s *PackObjectStore) Delete(ctx context.Context, key string) error {
	return ErrNotSupported
}

// Exists bisects the registry without reading the payload.
func (s *PackObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, _, ok := s.pack.Lookup(key)
	return ok, nil
}

// List returns every registry entry whose virtual path has prefix,
// sized from the registry's recorded placement rather than a read.
func (s *PackObjectStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for _, key := range s.pack.List() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		_, size, _ := s.pack.Lookup(key)
		out = append(out, ObjectInfo{Key: key, Size: int64(size)})
	}
	return out, nil
}

// Close unmounts the underlying pack file.
func (s *PackObjectStore) Close() error {
	return s.pack.Close()
}
