package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\x0d\x0a\x1a\x0a\x00\x00\x00\x0dIHDR")

func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	meta, err := store.Put(ctx, Metadata{FileName: "rx.png", OwnerID: "p1", CreatedBy: "p1"}, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "image/png", meta.ContentType, "content type is sniffed when not given")
	assert.Equal(t, int64(len(pngHeader)), meta.Size)
	assert.Len(t, meta.Hash, 64)

	head, err := store.Head(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, "rx.png", head.FileName)
	assert.Equal(t, "p1", head.OwnerID)
	assert.Equal(t, meta.Hash, head.Hash)

	rc, got, err := store.Get(ctx, meta.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, pngHeader, body)
	assert.Equal(t, "image/png", got.ContentType)

	require.NoError(t, store.Delete(ctx, meta.ID))
	_, err = store.Head(ctx, meta.ID)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.ErrorIs(t, store.Delete(ctx, meta.ID), ErrBlobNotFound)

	_, _, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestS3Store_MockTransport(t *testing.T) {
	runStoreContract(t, newMockS3Store())
}

func TestPut_Validation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name    string
		meta    Metadata
		content io.Reader
		want    error
	}{
		{"missing name", Metadata{ContentType: "image/png"}, bytes.NewReader(pngHeader), ErrMissingFileName},
		{"empty", Metadata{FileName: "a.png", ContentType: "image/png"}, strings.NewReader(""), ErrEmptyFile},
		{"text file", Metadata{FileName: "a.txt"}, strings.NewReader("just text"), ErrInvalidContentType},
		{"declared html", Metadata{FileName: "a.html", ContentType: "text/html"}, strings.NewReader("<p>x</p>"), ErrInvalidContentType},
		{"too large", Metadata{FileName: "big.pdf", ContentType: "application/pdf"}, io.LimitReader(zeroReader{}, MaxFileSize+10), ErrFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Put(ctx, tt.meta, tt.content)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
