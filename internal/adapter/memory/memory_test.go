package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/habat-tech/todrive/internal/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapter_Upload(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	res, err := m.Upload(ctx, adapter.UploadRequest{
		Name:     "todrive-1.mp4",
		MimeType: "video/mp4",
		Content:  strings.NewReader("frames"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, "todrive-1.mp4", res.Name)
	assert.Equal(t, int64(6), res.Size)

	files := m.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "frames", string(files[0].Content))
}

func TestMemoryAdapter_DefaultMimeType(t *testing.T) {
	m := NewMemoryAdapter()

	res, err := m.Upload(context.Background(), adapter.UploadRequest{Name: "a", Content: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", res.MIMEType)
}

func TestMemoryAdapter_Quota(t *testing.T) {
	m := NewMemoryAdapter()
	m.Quota = 4
	ctx := context.Background()

	_, err := m.Upload(ctx, adapter.UploadRequest{Name: "a", Content: strings.NewReader("abc")})
	require.NoError(t, err)

	_, err = m.Upload(ctx, adapter.UploadRequest{Name: "b", Content: strings.NewReader("de")})
	assert.ErrorIs(t, err, adapter.ErrQuotaExceeded)
	assert.Len(t, m.Files(), 1)
}

func TestMemoryAdapter_ProviderSharesStore(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()

	u, err := m.NewUploader(ctx, nil)
	require.NoError(t, err)
	_, err = u.Upload(ctx, adapter.UploadRequest{Name: "a", Content: strings.NewReader("x")})
	require.NoError(t, err)

	assert.Len(t, m.Files(), 1)
}
