package gcstransport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGCS is a minimal httptest server implementing just enough of the
// GCS resumable upload protocol to drive the scripted responses a test
// wants to see, in the style of original_source's mockito expectations.
type fakeGCS struct {
	t        *testing.T
	server   *httptest.Server
	sequence []func(w http.ResponseWriter, r *http.Request)
	calls    int
}

func newFakeGCS(t *testing.T, steps ...func(w http.ResponseWriter, r *http.Request)) *fakeGCS {
	f := &fakeGCS{t: t, sequence: steps}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGCS) handle(w http.ResponseWriter, r *http.Request) {
	if f.calls >= len(f.sequence) {
		f.t.Fatalf("unexpected request #%d: %s %s", f.calls, r.Method, r.URL.String())
	}
	step := f.sequence[f.calls]
	f.calls++
	step(w, r)
}

func initStep(t *testing.T, sessionPath string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer fake-token", r.Header.Get("Authorization"))
		w.Header().Set("Location", "http://"+r.Host+sessionPath)
		w.WriteHeader(http.StatusOK)
	}
}

func putStep(t *testing.T, wantContentRange, wantBody string, status int, rangeHeader string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, wantContentRange, r.Header.Get("Content-Range"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, wantBody, string(body))
		if rangeHeader != "" {
			w.Header().Set("Range", rangeHeader)
		}
		w.WriteHeader(status)
	}
}

func openUploader(t *testing.T, f *fakeGCS, minChunkSize int) *Uploader {
	t.Helper()
	u, err := Open(context.Background(), f.server.Client(), f.server.URL, "fake-bucket", "fake-object", "fake-token", minChunkSize, discardLogger())
	require.NoError(t, err)
	return u
}

func TestUploader_SimpleUploadBelowMinimum(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		putStep(t, "bytes 0-6/7", "content", http.StatusOK, ""),
	)
	u := openUploader(t, f, 10)

	n, err := u.Write([]byte("content"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, u.CompleteUpload(context.Background()))
	assert.Equal(t, 2, f.calls)
}

func TestUploader_MultiChunkWithPartialAcceptance(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		putStep(t, "bytes 0-3/*", "0123", http.StatusPermanentRedirect, "bytes=0-3"),
		putStep(t, "bytes 4-7/*", "4567", http.StatusPermanentRedirect, "bytes=0-6"),
		putStep(t, "bytes 7-9/10", "789", http.StatusOK, ""),
	)
	u := openUploader(t, f, 4)

	n, err := u.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, int64(7), u.Position())
	assert.Equal(t, 3, u.Pending())

	require.NoError(t, u.CompleteUpload(context.Background()))
	assert.Equal(t, 4, f.calls)
}

func TestUploader_SessionInitFailure(t *testing.T) {
	f := newFakeGCS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := Open(context.Background(), f.server.Client(), f.server.URL, "fake-bucket", "fake-object", "fake-token", 10, discardLogger())
	require.Error(t, err)
	var sessionErr *SessionInitError
	require.ErrorAs(t, err, &sessionErr)
	assert.Equal(t, http.StatusInternalServerError, sessionErr.Status)
	assert.Equal(t, 1, f.calls)
}

func TestUploader_MissingRangeHeader(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		putStep(t, "bytes 0-3/*", "0123", http.StatusPermanentRedirect, ""),
	)
	u := openUploader(t, f, 4)

	_, err := u.Write([]byte("0123"))
	require.Error(t, err)
	var rangeErr *MissingRangeHeaderError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, int64(0), u.Position())
	assert.Equal(t, 4, u.Pending())
}

func TestUploader_InsufficientBufferIsCallerBug(t *testing.T) {
	f := newFakeGCS(t, initStep(t, "/fake-session-uri"))
	u := openUploader(t, f, 10)
	u.buf = append(u.buf, []byte("short")...)

	err := u.uploadChunk(context.Background(), false)
	var bufErr *InsufficientBufferError
	require.ErrorAs(t, err, &bufErr)
	assert.Equal(t, 5, bufErr.Have)
	assert.Equal(t, 10, bufErr.Need)
}

func TestUploader_PrematureCompletion(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		putStep(t, "bytes 0-3/*", "0123", http.StatusOK, ""),
	)
	u := openUploader(t, f, 4)

	_, err := u.Write([]byte("0123"))
	var prematureErr *PrematureCompletionError
	require.ErrorAs(t, err, &prematureErr)
}

func TestUploader_ZeroProgress(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		putStep(t, "bytes 0-3/*", "0123", http.StatusPermanentRedirect, "bytes=0-3"),
		putStep(t, "bytes 4-7/*", "4567", http.StatusPermanentRedirect, "bytes=0-3"),
	)
	u := openUploader(t, f, 4)

	_, err := u.Write([]byte("01234567"))
	require.ErrorIs(t, err, ErrNoProgress)
	assert.Equal(t, int64(4), u.Position())
	assert.Equal(t, 4, u.Pending())
}

func TestUploader_CancelUpload(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "0", r.Header.Get("Content-Length"))
			w.WriteHeader(499)
		},
	)
	u := openUploader(t, f, 10)
	require.NoError(t, u.CancelUpload(context.Background()))

	_, err := u.Write([]byte("x"))
	require.ErrorIs(t, err, ErrUploaderClosed)
}

func TestUploader_CancelFailed(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	)
	u := openUploader(t, f, 10)
	err := u.CancelUpload(context.Background())
	var cancelErr *CancelError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, http.StatusOK, cancelErr.Status)
}

func TestUploader_EmptyStreamCompletesCleanWithoutPUT(t *testing.T) {
	f := newFakeGCS(t, initStep(t, "/fake-session-uri"))
	u := openUploader(t, f, 10)

	require.NoError(t, u.CompleteUpload(context.Background()))
	assert.Equal(t, 1, f.calls, "only the session-init request should have been made")
}

func TestUploader_RejectsWritesAfterComplete(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		putStep(t, "bytes 0-3/4", "abcd", http.StatusOK, ""),
	)
	u := openUploader(t, f, 10)
	_, err := u.Write([]byte("abcd"))
	require.NoError(t, err)
	require.NoError(t, u.CompleteUpload(context.Background()))

	_, err = u.Write([]byte("more"))
	require.ErrorIs(t, err, ErrUploaderClosed)

	err = u.CompleteUpload(context.Background())
	require.ErrorIs(t, err, ErrUploaderClosed)
}

func TestUploader_ChunkUploadFailedCarriesDiagnostics(t *testing.T) {
	f := newFakeGCS(t,
		initStep(t, "/fake-session-uri"),
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "quota exceeded")
		},
	)
	u := openUploader(t, f, 4)

	_, err := u.Write([]byte("0123"))
	var chunkErr *ChunkUploadError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, http.StatusForbidden, chunkErr.Status)
	assert.Equal(t, "quota exceeded", chunkErr.Body)
	assert.Equal(t, int64(0), chunkErr.Offset)
}
