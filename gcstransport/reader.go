package gcstransport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Reader performs single-shot authenticated GETs of GCS objects,
// returning the response body as a streaming byte source.
type Reader struct {
	httpClient *http.Client
	baseURL    string
	log        zerolog.Logger
}

// NewReader builds a Reader that issues requests against baseURL (e.g.
// "https://storage.googleapis.com").
func NewReader(httpClient *http.Client, baseURL string, log zerolog.Logger) *Reader {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Reader{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		log:        log.With().Str("component", "gcstransport.Reader").Logger(),
	}
}

// Get issues a GET for bucket/key with alt=media, returning the response
// body unread. The caller owns the returned ReadCloser and must Close it.
//
// ctx bounds connection setup and cancellation only; the transport's
// ResponseHeaderTimeout (see defaultHTTPClient) bounds the wait for
// headers. Neither bounds the body transfer itself, since the returned
// ReadCloser streams an object of arbitrary size.
func (r *Reader) Get(ctx context.Context, bucket, key, token string) (io.ReadCloser, error) {
	reqURL := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		r.baseURL, url.PathEscape(bucket), url.PathEscape(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gcstransport: building object GET: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.log.Error().Err(err).Str("url", reqURL).Msg("object GET failed")
		return nil, fmt.Errorf("gcstransport: object GET: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		r.log.Error().Int("status", resp.StatusCode).Str("url", reqURL).Msg("object fetch failed")
		return nil, &ObjectFetchError{URL: reqURL, Status: resp.StatusCode}
	}

	r.log.Debug().Dur("elapsed", time.Since(start)).Str("url", reqURL).Msg("object fetch succeeded")
	return resp.Body, nil
}
