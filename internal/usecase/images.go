package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"offer-wizard/internal/domain"
)

// ImagesAPI is the slice of the platform client the image fetcher consumes.
type ImagesAPI interface {
	ImagesList(ctx context.Context, propertyID string, page domain.Page) ([]domain.ImageMeta, error)
	DownloadImage(ctx context.Context, propertyID, imageID string) (io.ReadCloser, error)
}

// ImageFetcher retrieves condition photos for a page, strictly one at a
// time. Each fetched image is spooled to a temp file owned by the returned
// handle; callers must Close every handle or the file leaks.
type ImageFetcher struct {
	api ImagesAPI
	dir string
}

// NewImageFetcher creates a fetcher spooling into dir ("" means the system
// temp directory).
func NewImageFetcher(api ImagesAPI, dir string) (*ImageFetcher, error) {
	if api == nil {
		return nil, errors.New("usecase: images api must not be nil")
	}
	return &ImageFetcher{api: api, dir: dir}, nil
}

// ImageHandle is one downloaded photo. Close releases the backing file;
// closing twice is safe.
type ImageHandle struct {
	Meta domain.ImageMeta

	mu     sync.Mutex
	path   string
	closed bool
}

// Open returns a reader over the image bytes. The caller closes the
// returned file independently of the handle.
func (h *ImageHandle) Open() (*os.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("usecase: image handle is released")
	}
	return os.Open(h.path)
}

// Close removes the spooled file.
func (h *ImageHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return os.Remove(h.path)
}

// FetchAll lists and downloads every condition photo for the page, in
// sequence. An empty list is a data-absence condition, not an error. On a
// mid-sequence failure, everything fetched so far is released before the
// error is returned.
func (f *ImageFetcher) FetchAll(ctx context.Context, propertyID string, page domain.Page) ([]*ImageHandle, error) {
	metas, err := f.api.ImagesList(ctx, propertyID, page)
	if err != nil {
		return nil, apiError("images_list_error", err)
	}
	if len(metas) == 0 {
		return nil, nil
	}

	handles := make([]*ImageHandle, 0, len(metas))
	for _, meta := range metas {
		h, err := f.fetchOne(ctx, propertyID, meta)
		if err != nil {
			for _, fetched := range handles {
				_ = fetched.Close()
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (f *ImageFetcher) fetchOne(ctx context.Context, propertyID string, meta domain.ImageMeta) (*ImageHandle, error) {
	body, err := f.api.DownloadImage(ctx, propertyID, meta.ImageID)
	if err != nil {
		return nil, apiError("image_download_error", err)
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp(f.dir, "condition-photo-*")
	if err != nil {
		return nil, newError(ErrorInternal, "image_spool_error", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, newError(ErrorInternal, "image_spool_error", fmt.Errorf("spool %s: %w", meta.ImageID, err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, newError(ErrorInternal, "image_spool_error", err)
	}
	return &ImageHandle{Meta: meta, path: tmp.Name()}, nil
}
