package ytuploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeYouTube answers videos.insert. A resumable session start is given a
// Location to upload to; every other request gets status and body.
type fakeYouTube struct {
	mu       sync.Mutex
	status   int
	body     string
	requests []string
	payload  strings.Builder
}

func (f *fakeYouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	b, _ := io.ReadAll(r.Body)
	f.payload.Write(b)

	if r.URL.Query().Get("uploadType") == "resumable" && f.status == http.StatusOK {
		w.Header().Set("Location", "http://"+r.Host+"/resume")
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	io.WriteString(w, f.body)
}

func newFakeClient(t *testing.T, f *fakeYouTube) *ClientYT {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), (*logging.TestLogger)(t), ClientOptions{},
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really an mp4"), 0o644))
	return path
}

func TestInsertVideo(t *testing.T) {
	f := &fakeYouTube{status: http.StatusOK, body: `{"kind":"youtube#video","id":"abc123"}`}
	c := newFakeClient(t, f)
	path := writeVideo(t)

	id, err := c.InsertVideo(context.Background(), VideoMetadata{
		Path:          path,
		Title:         "My clip",
		Description:   "A short clip",
		CategoryID:    "22",
		PrivacyStatus: "private",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	assert.Contains(t, f.requests[0], "youtube/v3/videos")
	assert.Contains(t, f.requests[0], "part=snippet")
	sent := f.payload.String()
	assert.Contains(t, sent, `"title":"My clip"`)
	assert.Contains(t, sent, `"categoryId":"22"`)
	assert.Contains(t, sent, `"privacyStatus":"private"`)
	assert.Contains(t, sent, "not really an mp4")
}

func TestInsertVideoAPIError(t *testing.T) {
	f := &fakeYouTube{
		status: http.StatusForbidden,
		body: `{"error":{"code":403,"message":"The request cannot be completed because you have exceeded your quota.",
			"errors":[{"reason":"quotaExceeded","domain":"youtube.quota","message":"quota"}]}}`,
	}
	c := newFakeClient(t, f)

	_, err := c.InsertVideo(context.Background(), VideoMetadata{
		Path:          writeVideo(t),
		Title:         "clip",
		CategoryID:    "22",
		PrivacyStatus: "private",
	})
	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.Code)
	assert.Equal(t, "quotaExceeded", ue.Reason)
	assert.True(t, ue.QuotaExceeded())
}

func TestInsertVideoTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL + "/"
	srv.Close()
	c, err := NewClient(context.Background(), (*logging.TestLogger)(t), ClientOptions{},
		option.WithEndpoint(endpoint),
		option.WithHTTPClient(&http.Client{}),
	)
	require.NoError(t, err)

	_, err = c.InsertVideo(context.Background(), VideoMetadata{
		Path:          writeVideo(t),
		Title:         "clip",
		CategoryID:    "22",
		PrivacyStatus: "private",
	})
	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Zero(t, ue.Code)
	assert.False(t, ue.QuotaExceeded())
	assert.NotNil(t, ue.Unwrap())
	assert.Contains(t, err.Error(), "youtube upload failed")
}

func TestInsertVideoMissingFile(t *testing.T) {
	f := &fakeYouTube{status: http.StatusOK, body: `{"id":"x"}`}
	c := newFakeClient(t, f)

	_, err := c.InsertVideo(context.Background(), VideoMetadata{
		Path:          filepath.Join(t.TempDir(), "gone.mp4"),
		CategoryID:    "22",
		PrivacyStatus: "private",
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, f.requests)
}

func TestInsertVideoInvalidMetadata(t *testing.T) {
	f := &fakeYouTube{status: http.StatusOK, body: `{"id":"x"}`}
	c := newFakeClient(t, f)

	_, err := c.InsertVideo(context.Background(), VideoMetadata{Path: writeVideo(t), CategoryID: "22", PrivacyStatus: "hidden"})
	assert.Error(t, err)
	_, err = c.InsertVideo(context.Background(), VideoMetadata{Path: writeVideo(t), CategoryID: "nope", PrivacyStatus: "private"})
	assert.Error(t, err)
	assert.Empty(t, f.requests)
}
