package wiki

import (
	"context"
	"fmt"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/models"
)

// CheckUpload reports whether a file of size bytes may be uploaded to the
// web. A zero max_upload_size means no limit.
func (r *Registry) CheckUpload(ctx context.Context, address string, size int64) (*models.Web, error) {
	web, err := r.Web(ctx, address)
	if err != nil {
		return nil, err
	}
	if !web.AllowUploads {
		return nil, apperr.ErrUploadsDisabled
	}
	if web.MaxUploadSize > 0 && size > web.MaxUploadSize {
		return nil, fmt.Errorf("%d bytes (limit %d): %w", size, web.MaxUploadSize, apperr.ErrUploadTooLarge)
	}
	return web, nil
}
