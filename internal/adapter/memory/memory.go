package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/habat-tech/todrive/internal/adapter"
)

// DefaultQuota caps the bytes a MemoryAdapter accepts across all uploads.
const DefaultQuota = 512 * 1024 * 1024 // 512MB

// StoredFile is an uploaded entry held in memory.
type StoredFile struct {
	adapter.UploadResult
	Content []byte
}

// MemoryAdapter implements adapter.Uploader and adapter.UploaderProvider
// without any network access. Used in DEV_MODE and tests.
type MemoryAdapter struct {
	mu    sync.RWMutex
	files map[string]*StoredFile
	order []string
	used  int64

	Quota int64
}

// NewMemoryAdapter returns an empty adapter with DefaultQuota.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		files: make(map[string]*StoredFile),
		Quota: DefaultQuota,
	}
}

// NewUploader ignores the client; every session shares the same store.
func (m *MemoryAdapter) NewUploader(_ context.Context, _ *http.Client) (adapter.Uploader, error) {
	return m, nil
}

// Upload stores req.Content under a fresh ID.
func (m *MemoryAdapter) Upload(ctx context.Context, req adapter.UploadRequest) (*adapter.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, req.Content); err != nil {
		return nil, fmt.Errorf("unable to read upload content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	size := int64(buf.Len())
	if m.Quota > 0 && m.used+size > m.Quota {
		return nil, fmt.Errorf("unable to upload %q (%d bytes): %w", req.Name, size, adapter.ErrQuotaExceeded)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	f := &StoredFile{
		UploadResult: adapter.UploadResult{
			FileID:   uuid.New().String(),
			Name:     req.Name,
			MIMEType: mimeType,
			Size:     size,
		},
		Content: buf.Bytes(),
	}
	m.files[f.FileID] = f
	m.order = append(m.order, f.FileID)
	m.used += size

	res := f.UploadResult
	return &res, nil
}

// Files returns uploaded entries in upload order.
func (m *MemoryAdapter) Files() []StoredFile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StoredFile, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.files[id])
	}
	return out
}
