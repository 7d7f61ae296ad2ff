package gcstransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

// DefaultMinChunkSize is GCS's recommended chunk size for resumable
// uploads: https://cloud.google.com/storage/docs/performing-resumable-uploads#chunked-upload
const DefaultMinChunkSize = 8 * 1024 * 1024

// MinChunkSizeFloor is the server-mandated minimum for any non-final
// chunk of a resumable upload.
const MinChunkSizeFloor = googleapi.MinUploadChunkSize

const requestTimeout = 10 * time.Second

type uploadState int

const (
	stateInitiated uploadState = iota
	stateStreaming
	stateComplete
	stateCancelled
)

// Uploader is a stateful, single-owner writer that drives the GCS
// resumable-upload wire protocol. It accepts arbitrary byte writes,
// buffers them, and flushes full chunks to the server as they
// accumulate; CompleteUpload drains whatever remains as the final chunk.
//
// An Uploader is not safe for concurrent use.
type Uploader struct {
	httpClient   *http.Client
	sessionURI   string
	minChunkSize int

	// idempotencyToken is sent on every chunk PUT so the server can
	// recognize a retried request as a duplicate rather than a new
	// write, the way generated GCS clients attach an invocation ID.
	idempotencyToken string

	position int64
	buf      []byte
	state    uploadState

	log zerolog.Logger
}

// Open initiates a new resumable upload session for bucket/objectName and
// returns an Uploader ready to accept writes. token authenticates only
// this initiation request; the returned session URI authenticates every
// subsequent chunk PUT for the lifetime of the upload.
func Open(ctx context.Context, httpClient *http.Client, baseURL, bucket, objectName, token string, minChunkSize int, log zerolog.Logger) (*Uploader, error) {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	if minChunkSize <= 0 {
		minChunkSize = DefaultMinChunkSize
	}
	log = log.With().Str("component", "gcstransport.Uploader").Str("bucket", bucket).Str("object", objectName).Logger()

	initURL := fmt.Sprintf("%s/upload/storage/v1/b/%s/o/?uploadType=resumable&name=%s",
		strings.TrimSuffix(baseURL, "/"), url.PathEscape(bucket), url.QueryEscape(objectName))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, initURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gcstransport: building session-init request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.ContentLength = 0

	resp, err := httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("session init request failed")
		return nil, fmt.Errorf("gcstransport: session init request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		sessionErr := &SessionInitError{URL: initURL, Status: resp.StatusCode, Body: string(body)}
		log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("session init failed")
		return nil, sessionErr
	}

	location := resp.Header.Get("Location")
	if location == "" {
		log.Error().Msg("session init response missing Location header")
		return nil, &SessionInitError{URL: initURL, Status: resp.StatusCode, Body: "missing Location header"}
	}

	log.Debug().Str("sessionURI", location).Msg("resumable upload session initiated")

	return &Uploader{
		httpClient:       httpClient,
		sessionURI:       location,
		minChunkSize:     minChunkSize,
		idempotencyToken: uuid.New().String(),
		position:         0,
		buf:              make([]byte, 0, 2*minChunkSize),
		state:            stateStreaming,
		log:              log,
	}, nil
}

// Write appends p to the internal buffer, flushing full non-final chunks
// to GCS as they accumulate. Once the uploader has finished it returns
// 0 and ErrUploaderClosed; otherwise it returns len(p), together with
// the error of a failed chunk PUT, since every byte of p is buffered.
func (u *Uploader) Write(p []byte) (int, error) {
	if u.state == stateComplete || u.state == stateCancelled {
		return 0, ErrUploaderClosed
	}
	u.buf = append(u.buf, p...)
	for len(u.buf) >= u.minChunkSize {
		if err := u.uploadChunk(context.Background(), false); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// WriteContext is like Write but threads ctx through the chunk PUTs it
// issues, so a caller-supplied deadline or cancellation applies.
func (u *Uploader) WriteContext(ctx context.Context, p []byte) (int, error) {
	if u.state == stateComplete || u.state == stateCancelled {
		return 0, ErrUploaderClosed
	}
	u.buf = append(u.buf, p...)
	for len(u.buf) >= u.minChunkSize {
		if err := u.uploadChunk(ctx, false); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// CompleteUpload drains the remaining buffer as final chunks, declaring
// the total object length to GCS, and transitions the uploader to the
// Complete state.
func (u *Uploader) CompleteUpload(ctx context.Context) error {
	if u.state == stateComplete || u.state == stateCancelled {
		return ErrUploaderClosed
	}
	for len(u.buf) > 0 {
		if err := u.uploadChunk(ctx, true); err != nil {
			return err
		}
	}
	u.state = stateComplete
	return nil
}

// CancelUpload releases the upload session on the server. Per the GCS
// protocol, success is reported as HTTP 499, not 200/204.
func (u *Uploader) CancelUpload(ctx context.Context) error {
	if u.state == stateComplete || u.state == stateCancelled {
		return ErrUploaderClosed
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u.sessionURI, nil)
	if err != nil {
		return fmt.Errorf("gcstransport: building cancel request: %w", err)
	}
	req.ContentLength = 0
	req.Header.Set("Content-Length", "0")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		u.log.Error().Err(err).Msg("cancel request failed")
		return fmt.Errorf("gcstransport: cancel request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 499 {
		cancelErr := &CancelError{URL: u.sessionURI, Status: resp.StatusCode}
		u.log.Error().Int("status", resp.StatusCode).Msg("cancel did not return 499")
		return cancelErr
	}

	u.state = stateCancelled
	u.log.Debug().Msg("upload session cancelled")
	return nil
}

// uploadChunk is the heart of the protocol: it PUTs either a full
// min-chunk-size slice of the buffer (non-final) or the entire remaining
// buffer (final), interprets the response, and advances position/buf.
func (u *Uploader) uploadChunk(ctx context.Context, last bool) error {
	if len(u.buf) == 0 {
		return nil
	}
	if !last && len(u.buf) < u.minChunkSize {
		return &InsufficientBufferError{Have: len(u.buf), Need: u.minChunkSize}
	}

	var body []byte
	var totalField string
	if last && len(u.buf) < u.minChunkSize {
		body = u.buf
		totalField = strconv.FormatInt(u.position+int64(len(body)), 10)
	} else {
		body = u.buf[:u.minChunkSize]
		totalField = "*"
	}

	rangeLo := u.position
	rangeHi := u.position + int64(len(body)) - 1
	contentRange := fmt.Sprintf("bytes %d-%d/%s", rangeLo, rangeHi, totalField)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.sessionURI, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gcstransport: building chunk request: %w", err)
	}
	req.Header.Set("Content-Range", contentRange)
	req.Header.Set("X-Goog-Gcs-Idempotency-Token", u.idempotencyToken)
	req.ContentLength = int64(len(body))

	start := time.Now()
	resp, err := u.httpClient.Do(req)
	if err != nil {
		u.log.Error().Err(err).Str("contentRange", contentRange).Msg("chunk PUT failed")
		return fmt.Errorf("gcstransport: chunk PUT: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)

	switch {
	case resp.StatusCode == 200 || resp.StatusCode == 201:
		if !last {
			u.log.Error().Msg("server finalized upload with bytes still pending")
			return &PrematureCompletionError{}
		}
		u.position += int64(len(body))
		u.buf = nil
		u.state = stateComplete
		u.log.Debug().Dur("elapsed", elapsed).Int64("position", u.position).Msg("upload finalized")
		return nil

	case resp.StatusCode == 308:
		rangeHeader := resp.Header.Get("Range")
		if rangeHeader == "" {
			u.log.Error().Msg("308 response missing Range header")
			return &MissingRangeHeaderError{URL: u.sessionURI}
		}

		const prefix = "bytes=0-"
		if !strings.HasPrefix(rangeHeader, prefix) {
			return &InvalidRangeError{RangeHeader: rangeHeader, Position: u.position, BodyLen: int64(len(body))}
		}
		end, err := strconv.ParseInt(strings.TrimPrefix(rangeHeader, prefix), 10, 64)
		if err != nil {
			return &InvalidRangeError{RangeHeader: rangeHeader, Position: u.position, BodyLen: int64(len(body))}
		}
		if end < u.position-1 || end > u.position+int64(len(body))-1 {
			return &InvalidRangeError{RangeHeader: rangeHeader, Position: u.position, BodyLen: int64(len(body))}
		}

		if end == u.position-1 {
			// Zero bytes accepted this round; buffer/position untouched.
			u.log.Debug().Str("rangeHeader", rangeHeader).Msg("no progress on chunk")
			return ErrNoProgress
		}

		u.buf = u.buf[end+1-u.position:]
		u.position = end + 1
		u.log.Debug().Dur("elapsed", elapsed).Int64("position", u.position).Msg("chunk partially accepted")
		return nil

	default:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		chunkErr := &ChunkUploadError{URL: u.sessionURI, Status: resp.StatusCode, Body: string(respBody), Offset: u.position}
		u.log.Error().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("chunk upload failed")
		return chunkErr
	}
}

// Position reports the number of bytes the server has confirmed so far.
func (u *Uploader) Position() int64 { return u.position }

// Pending reports the number of buffered, unconfirmed bytes.
func (u *Uploader) Pending() int { return len(u.buf) }

// SessionURI returns the absolute upload session URL. Persisting this
// value is the only way to resume an upload from a different process;
// the uploader itself does not support cross-process resumption.
func (u *Uploader) SessionURI() string { return u.sessionURI }
