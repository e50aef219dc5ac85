//go:build integration

package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/ragkit/internal/storage"
	"github.com/cloo-solutions/ragkit/internal/testutil"
)

func TestS3Source_RustFS(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     rc.AccessKey,
		SecretAccessKey: rc.SecretKey,
		Bucket:          "documents",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	require.NoError(t, client.PutObject(ctx, "kb/guide.md", []byte("# Guide\r\nsteps"), "text/markdown"))
	require.NoError(t, client.PutObject(ctx, "kb/nested/notes.txt", []byte("notes"), "text/plain"))
	require.NoError(t, client.PutObject(ctx, "kb/logo.png", []byte{0x89, 0x50}, "image/png"))
	require.NoError(t, client.PutObject(ctx, "other/skip.txt", []byte("skip"), "text/plain"))

	src := NewS3Source(client, "kb", nil, nil)
	names, err := src.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"guide.md", "nested/notes.txt"}, names)

	doc, err := src.ReadDocument(ctx, "guide.md")
	require.NoError(t, err)
	assert.Equal(t, "# Guide\nsteps", doc.Text)

	meta, err := client.HeadObject(ctx, "kb/nested/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), meta.ContentLength)
}
