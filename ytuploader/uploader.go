package ytuploader

import (
	"context"
	"errors"
	"fmt"

	"github.com/ausocean/utils/logging"
)

// VideoInserter performs a single video upload and returns the video ID.
// *ClientYT is the production implementation.
type VideoInserter interface {
	InsertVideo(ctx context.Context, m VideoMetadata) (string, error)
}

// UploadStatus is the outcome of one upload attempt.
type UploadStatus int

const (
	StatusUploaded UploadStatus = iota + 1
	StatusSkipped
	StatusFailed
)

func (s UploadStatus) String() string {
	switch s {
	case StatusUploaded:
		return "uploaded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func parseUploadStatus(s string) UploadStatus {
	switch s {
	case "uploaded":
		return StatusUploaded
	case "skipped":
		return StatusSkipped
	case "failed":
		return StatusFailed
	}
	return 0
}

// UploadResult - outcome for one manifest entry. VideoID is set when
// Uploaded, Err when Failed.
type UploadResult struct {
	Entry   ManifestEntry
	Status  UploadStatus
	VideoID string
	Err     error
}

// Uploader uploads manifest entries, refusing any the ledger already holds.
type Uploader struct {
	videos VideoInserter
	ledger *Ledger
	log    logging.Logger
}

// NewUploader returns an Uploader sending videos through v.
func NewUploader(v VideoInserter, ledger *Ledger, log logging.Logger) *Uploader {
	return &Uploader{videos: v, ledger: ledger, log: log}
}

// Upload uploads entry unless the ledger already has its path. It never
// returns an error: failures are reported in the result so a batch can carry
// on. The caller commits successful uploads to the ledger.
func (u *Uploader) Upload(ctx context.Context, entry ManifestEntry, categoryID, privacy string) (res UploadResult) {
	res.Entry = entry
	if u.ledger.Contains(entry.VideoPath) {
		u.log.Info("video already uploaded, skipping", "path", entry.VideoPath)
		res.Status = StatusSkipped
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.VideoID = ""
			res.Err = fmt.Errorf("upload panicked: %v", r)
			u.log.Error("upload failed", "path", entry.VideoPath, "error", res.Err)
		}
	}()

	u.log.Info("uploading video", "path", entry.VideoPath, "title", entry.Title)
	id, err := u.videos.InsertVideo(ctx, VideoMetadata{
		Path:          entry.VideoPath,
		Title:         entry.Title,
		Description:   entry.Description,
		CategoryID:    categoryID,
		PrivacyStatus: privacy,
	})
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		var ue *UploadError
		if errors.As(err, &ue) && ue.QuotaExceeded() {
			u.log.Error("upload failed, quota exceeded", "path", entry.VideoPath, "error", err)
		} else {
			u.log.Error("upload failed", "path", entry.VideoPath, "error", err)
		}
		return res
	}

	u.log.Info("video uploaded", "path", entry.VideoPath, "id", id)
	res.Status = StatusUploaded
	res.VideoID = id
	return res
}
