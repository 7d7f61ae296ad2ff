package gcstransport

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://storage.googleapis.com"

// Transport binds a bucket and key prefix to a TokenSource and produces
// independent readers/writers per object key. It caches neither; every
// Get/Put issues its own network round trips from scratch.
type Transport struct {
	path        ObjectPath
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	baseURL     string
	minChunkSize int
	log         zerolog.Logger
}

// NewTransport builds a Transport for bucket/prefix, authenticating every
// request through tokenSource.
func NewTransport(bucket, prefix string, tokenSource oauth2.TokenSource, httpClient *http.Client, log zerolog.Logger) *Transport {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Transport{
		path:         NewObjectPath(bucket, prefix),
		tokenSource:  tokenSource,
		httpClient:   httpClient,
		baseURL:      defaultBaseURL,
		minChunkSize: DefaultMinChunkSize,
		log:          log.With().Str("component", "gcstransport.Transport").Str("bucket", bucket).Logger(),
	}
}

// WithBaseURL overrides the storage API base URL, for pointing at a test
// server instead of storage.googleapis.com.
func (t *Transport) WithBaseURL(baseURL string) *Transport {
	t.baseURL = baseURL
	return t
}

// WithMinChunkSize overrides the uploader's minimum chunk size.
func (t *Transport) WithMinChunkSize(n int) *Transport {
	t.minChunkSize = n
	return t
}

// Get fetches the object at key as a streaming byte source.
func (t *Transport) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	token, err := t.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	reader := NewReader(t.httpClient, t.baseURL, t.log)
	return reader.Get(ctx, t.path.Bucket, t.path.Join(key), token)
}

// Put opens a resumable upload for the object at key.
func (t *Transport) Put(ctx context.Context, key string) (*Uploader, error) {
	token, err := t.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	return Open(ctx, t.httpClient, t.baseURL, t.path.Bucket, t.path.Join(key), token, t.minChunkSize, t.log)
}

func (t *Transport) ensureToken(ctx context.Context) (string, error) {
	tok, err := t.tokenSource.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
