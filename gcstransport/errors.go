package gcstransport

import (
	"errors"
	"fmt"
)

// SessionInitError reports a failed resumable-upload session initiation:
// a non-2xx status, or a 2xx with no Location header.
type SessionInitError struct {
	URL    string
	Status int
	Body   string
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("gcstransport: session init at %s failed: status %d, body %q", e.URL, e.Status, e.Body)
}

// InsufficientBufferError is a caller invariant violation: upload_chunk
// was asked to send a non-final chunk smaller than the minimum size.
type InsufficientBufferError struct {
	Have, Need int
}

func (e *InsufficientBufferError) Error() string {
	return fmt.Sprintf("gcstransport: buffer has %d bytes, need at least %d for a non-final chunk", e.Have, e.Need)
}

// MissingRangeHeaderError reports a 308 response with no Range header.
type MissingRangeHeaderError struct {
	URL string
}

func (e *MissingRangeHeaderError) Error() string {
	return fmt.Sprintf("gcstransport: 308 response from %s carried no Range header", e.URL)
}

// InvalidRangeError reports a Range header whose end offset falls
// outside the bounds the chunk could possibly have confirmed.
type InvalidRangeError struct {
	RangeHeader        string
	Position, BodyLen int64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("gcstransport: Range header %q invalid, expected end in [%d, %d]", e.RangeHeader, e.Position, e.Position+e.BodyLen-1)
}

// PrematureCompletionError reports the server finalizing the object while
// the caller still had buffered bytes pending.
type PrematureCompletionError struct{}

func (e *PrematureCompletionError) Error() string {
	return "gcstransport: server finalized upload with pending buffered bytes"
}

// ChunkUploadError reports any chunk PUT response outside {200, 201, 308}.
type ChunkUploadError struct {
	URL    string
	Status int
	Body   string
	Offset int64
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("gcstransport: chunk PUT to %s at offset %d failed: status %d, body %q", e.URL, e.Offset, e.Status, e.Body)
}

// CancelError reports a cancellation DELETE that did not return 499.
type CancelError struct {
	URL    string
	Status int
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("gcstransport: cancel DELETE to %s returned status %d, expected 499", e.URL, e.Status)
}

// ObjectFetchError reports a non-2xx object GET.
type ObjectFetchError struct {
	URL    string
	Status int
}

func (e *ObjectFetchError) Error() string {
	return fmt.Sprintf("gcstransport: GET %s failed with status %d", e.URL, e.Status)
}

// ErrNoProgress is returned by uploadChunk when the server reports a 308
// with Range: bytes=0-{position-1} -- i.e. it accepted none of the chunk
// just sent. The uploader never retries internally; returning a distinct
// sentinel instead of silently treating this as success lets the caller
// bound its own retries.
var ErrNoProgress = errors.New("gcstransport: server reported no progress on last chunk")

// ErrUploaderClosed is returned by Write/CompleteUpload/CancelUpload once
// the uploader has reached the Complete or Cancelled state.
var ErrUploaderClosed = errors.New("gcstransport: uploader is already complete or cancelled")
