package discord

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/zsiec/hostpanel/internal/errors"
)

// Fetcher downloads command attachments from the platform CDN.
type Fetcher struct {
	client  *http.Client
	maxSize int64
}

// NewFetcher returns a Fetcher refusing bodies above maxSize bytes.
func NewFetcher(client *http.Client, maxSize int64) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Fetcher{client: client, maxSize: maxSize}
}

// Fetch downloads url. The declared size was already checked; the cap is
// enforced again on the bytes actually read.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeValidation, "Invalid attachment URL", http.StatusBadRequest)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.WrapRemoteFailure(err, "Attachment download")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.WrapRemoteFailure(fmt.Errorf("status %d", resp.StatusCode), "Attachment download")
	}

	body := io.Reader(resp.Body)
	if f.maxSize > 0 {
		body = io.LimitReader(resp.Body, f.maxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, apperrors.WrapRemoteFailure(err, "Attachment download")
	}
	if f.maxSize > 0 && int64(len(data)) > f.maxSize {
		return nil, apperrors.NewValidationError(fmt.Sprintf("The attachment is larger than %d bytes.", f.maxSize))
	}
	return data, nil
}
