// Package imagesource loads face images referenced by URL or sent inline as base64.
package imagesource

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	maxImageBytes  = 20 << 20
)

var (
	// ErrInvalidSource is returned for malformed URLs, unsupported schemes and undecodable base64.
	ErrInvalidSource = errors.New("invalid image source")
	// ErrFetch is returned when the image could not be retrieved from its origin.
	ErrFetch = errors.New("could not download image")
	// ErrNotFound is returned when the referenced object does not exist.
	ErrNotFound = errors.New("image not found")
)

// ObjectGetter reads whole objects from object storage.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Fetcher downloads images over HTTP(S) and from object storage.
type Fetcher struct {
	client  *http.Client
	objects ObjectGetter
}

// NewFetcher creates a fetcher. A nil objects getter disables minio:// URLs.
func NewFetcher(timeout time.Duration, objects ObjectGetter) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		objects: objects,
	}
}

// Fetch returns the bytes of the image at rawURL. Supported schemes are http, https and
// minio (minio://bucket/path/to/object).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	var data []byte
	switch u.Scheme {
	case "http", "https":
		data, err = f.fetchHTTP(ctx, u.String())
	case "minio":
		data, err = f.fetchObject(ctx, u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body from %s", ErrFetch, rawURL)
	}
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d from %s", ErrFetch, resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrFetch, err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrInvalidSource, maxImageBytes)
	}
	return data, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, u *url.URL) ([]byte, error) {
	if f.objects == nil {
		return nil, fmt.Errorf("%w: object storage is not configured", ErrInvalidSource)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: expected minio://bucket/key, got %s", ErrInvalidSource, u.String())
	}
	return f.objects.GetObject(ctx, bucket, key)
}

// DecodeBase64 decodes inline image data. Standard and URL-safe alphabets are accepted,
// with or without padding, as is a data URI prefix.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty image data", ErrInvalidSource)
	}

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			if len(data) == 0 {
				break
			}
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: image_data is not valid base64", ErrInvalidSource)
}
