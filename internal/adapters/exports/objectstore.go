package exports

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"shelfstock/internal/blob/core"
)

// BlobObjectStore adapts a blob core.Store to the export ObjectStore contract.
// String metadata survives the round trip; other values are formatted.
type BlobObjectStore struct {
	store core.Store
}

// NewBlobObjectStore wraps the given blob backend.
func NewBlobObjectStore(store core.Store) *BlobObjectStore {
	return &BlobObjectStore{store: store}
}

// Put stores a new immutable artifact payload.
func (s *BlobObjectStore) Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]any) (Artifact, error) {
	info, err := s.store.Put(ctx, key, bytes.NewReader(payload), core.PutOptions{
		ContentType: contentType,
		Metadata:    stringifyMetadata(metadata),
	})
	if err != nil {
		return Artifact{}, err
	}
	return artifactFromInfo(info), nil
}

// Get returns the artifact metadata and full payload bytes.
func (s *BlobObjectStore) Get(ctx context.Context, key string) (Artifact, []byte, error) {
	info, rc, err := s.store.Get(ctx, key)
	if err != nil {
		return Artifact{}, nil, err
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return Artifact{}, nil, err
	}
	return artifactFromInfo(info), payload, nil
}

// Delete removes the artifact; returns true if it existed.
func (s *BlobObjectStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.store.Delete(ctx, key)
}

// List returns artifacts whose keys start with the prefix.
func (s *BlobObjectStore) List(ctx context.Context, prefix string) ([]Artifact, error) {
	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]Artifact, 0, len(infos))
	for _, info := range infos {
		out = append(out, artifactFromInfo(info))
	}
	return out, nil
}

func artifactFromInfo(info core.Info) Artifact {
	var meta map[string]any
	if len(info.Metadata) > 0 {
		meta = make(map[string]any, len(info.Metadata))
		for k, v := range info.Metadata {
			meta[k] = v
		}
	}
	return Artifact{
		ID:          info.Key,
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		URL:         info.URL,
		Metadata:    meta,
		CreatedAt:   info.LastModified,
	}
}

func stringifyMetadata(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = fmt.Sprint(v)
	}
	return out
}

var _ ObjectStore = (*BlobObjectStore)(nil)
