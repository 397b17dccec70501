// Package memory is an in-process object store used by tests and by the
// memory storage driver.
package memory

import (
	"bytes"
	"context"
	"crypto/md5" // #nosec G501 -- etag only
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"barcoder/internal/blob/core"
)

type entry struct {
	obj  core.Object
	data []byte
}

// Store implements core.Store in memory.
type Store struct {
	mu      sync.RWMutex
	objects map[string]entry
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store { return &Store{objects: make(map[string]entry)} }

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Object, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return core.Object{}, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Object{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.Object{}, err
	}
	sum := md5.Sum(data) // #nosec G401
	obj := core.Object{
		Key:          k,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		ETag:         hex.EncodeToString(sum[:]),
		Metadata:     core.CloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	s.mu.Lock()
	s.objects[k] = entry{obj: obj, data: data}
	s.mu.Unlock()
	return copyObject(obj), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Object, io.ReadCloser, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return core.Object{}, nil, err
	}
	s.mu.RLock()
	e, ok := s.objects[k]
	s.mu.RUnlock()
	if !ok {
		return core.Object{}, nil, fmt.Errorf("%w: %s", core.ErrNotFound, k)
	}
	return copyObject(e.obj), io.NopCloser(bytes.NewReader(e.data)), nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Object, error) {
	s.mu.RLock()
	out := make([]core.Object, 0, len(s.objects))
	for k, e := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, copyObject(e.obj))
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	k, err := core.CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[k]; !ok {
		return false, nil
	}
	delete(s.objects, k)
	return true, nil
}

func (s *Store) PresignURL(context.Context, string, time.Duration) (string, error) {
	return "", core.ErrUnsupported
}

func copyObject(o core.Object) core.Object {
	o.Metadata = core.CloneMetadata(o.Metadata)
	return o
}
