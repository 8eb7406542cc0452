package ytuploader

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ausocean/utils/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInserter stands in for the YouTube API. Paths listed in fail are
// rejected; every call is recorded.
type fakeInserter struct {
	calls []VideoMetadata
	fail  map[string]error
	panic map[string]bool
}

func (f *fakeInserter) InsertVideo(ctx context.Context, m VideoMetadata) (string, error) {
	f.calls = append(f.calls, m)
	if f.panic[m.Path] {
		panic("boom")
	}
	if err := f.fail[m.Path]; err != nil {
		return "", err
	}
	return "id-" + filepath.Base(m.Path), nil
}

func (f *fakeInserter) paths() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Path
	}
	return out
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	return OpenLedger(filepath.Join(t.TempDir(), "ledger.json"), (*logging.TestLogger)(t))
}

func TestUploaderUploads(t *testing.T) {
	f := &fakeInserter{}
	u := NewUploader(f, newTestLedger(t), (*logging.TestLogger)(t))

	entry := ManifestEntry{VideoPath: "videos/a.mp4", Title: "A", Description: "about a"}
	res := u.Upload(context.Background(), entry, "22", "private")

	assert.Equal(t, StatusUploaded, res.Status)
	assert.Equal(t, "id-a.mp4", res.VideoID)
	assert.NoError(t, res.Err)
	require.Len(t, f.calls, 1)
	assert.Equal(t, VideoMetadata{
		Path:          "videos/a.mp4",
		Title:         "A",
		Description:   "about a",
		CategoryID:    "22",
		PrivacyStatus: "private",
	}, f.calls[0])
}

func TestUploaderSkipsLedgerEntries(t *testing.T) {
	f := &fakeInserter{}
	l := newTestLedger(t)
	require.NoError(t, l.Commit("videos/a.mp4", "old", t0))
	u := NewUploader(f, l, (*logging.TestLogger)(t))

	res := u.Upload(context.Background(), ManifestEntry{VideoPath: "videos/a.mp4"}, "22", "private")
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Empty(t, f.calls)
	assert.Equal(t, []string{"old"}, l.Record().VideoIDs)
}

func TestUploaderFailure(t *testing.T) {
	quota := &UploadError{Code: 403, Reason: "quotaExceeded", Message: "quota"}
	f := &fakeInserter{fail: map[string]error{
		"q.mp4":   quota,
		"net.mp4": errors.New("connection reset"),
	}}
	l := newTestLedger(t)
	u := NewUploader(f, l, (*logging.TestLogger)(t))

	res := u.Upload(context.Background(), ManifestEntry{VideoPath: "q.mp4"}, "22", "private")
	assert.Equal(t, StatusFailed, res.Status)
	var ue *UploadError
	require.ErrorAs(t, res.Err, &ue)
	assert.True(t, ue.QuotaExceeded())

	res = u.Upload(context.Background(), ManifestEntry{VideoPath: "net.mp4"}, "22", "private")
	assert.Equal(t, StatusFailed, res.Status)
	assert.EqualError(t, res.Err, "connection reset")

	assert.Empty(t, l.Record().VideoPaths)
}

func TestUploaderRecoversPanic(t *testing.T) {
	f := &fakeInserter{panic: map[string]bool{"p.mp4": true}}
	u := NewUploader(f, newTestLedger(t), (*logging.TestLogger)(t))

	res := u.Upload(context.Background(), ManifestEntry{VideoPath: "p.mp4"}, "22", "private")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
	assert.Empty(t, res.VideoID)
}

func TestUploadStatusString(t *testing.T) {
	for _, s := range []UploadStatus{StatusUploaded, StatusSkipped, StatusFailed} {
		assert.Equal(t, s, parseUploadStatus(s.String()))
	}
	assert.Equal(t, "unknown", UploadStatus(0).String())
}
