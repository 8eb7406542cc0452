package ytuploader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ausocean/utils/logging"
	"github.com/cheggaaa/pb/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// UploadError carries the platform's rejection of an upload, or the transport
// failure that stopped it. Code is zero when no response arrived.
type UploadError struct {
	Code    int
	Reason  string
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("youtube upload failed: %s", e.Message)
	}
	if e.Reason != "" {
		return fmt.Sprintf("youtube rejected upload (%d %s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("youtube rejected upload (%d): %s", e.Code, e.Message)
}

func (e *UploadError) Unwrap() error { return e.Err }

// QuotaExceeded reports whether the API refused because the daily quota or
// upload limit is used up.
func (e *UploadError) QuotaExceeded() bool {
	return e.Reason == "quotaExceeded" || e.Reason == "uploadLimitExceeded"
}

// newUploadError converts a failed videos.insert call into an UploadError.
func newUploadError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &UploadError{Message: err.Error(), Err: err}
	}
	ue := &UploadError{Code: gerr.Code, Message: gerr.Message, Err: err}
	if len(gerr.Errors) > 0 {
		ue.Reason = gerr.Errors[0].Reason
		if ue.Message == "" {
			ue.Message = gerr.Errors[0].Message
		}
	}
	return ue
}

// ClientYT - an authenticated session against the YouTube Data API.
type ClientYT struct {
	service   *youtube.Service
	chunkSize int
	progress  bool
	log       logging.Logger
}

// ClientOptions tunes how a ClientYT uploads.
type ClientOptions struct {
	ChunkSize int  // resumable upload chunk size in bytes
	Progress  bool // draw a progress bar on stderr
}

// NewClient returns a client for the YouTube API. Authentication is carried
// by opts, normally option.WithHTTPClient with an OAuth2 client.
func NewClient(ctx context.Context, log logging.Logger, co ClientOptions, opts ...option.ClientOption) (*ClientYT, error) {
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create youtube service: %w", err)
	}
	if co.ChunkSize <= 0 {
		co.ChunkSize = DefaultChunkSize
	}
	return &ClientYT{service: svc, chunkSize: co.ChunkSize, progress: co.Progress, log: log}, nil
}

// InsertVideo uploads the file at m.Path with a resumable chunked upload and
// returns the new video's ID. API rejections are returned as *UploadError.
func (c *ClientYT) InsertVideo(ctx context.Context, m VideoMetadata) (string, error) {
	video, err := buildVideo(m)
	if err != nil {
		return "", err
	}

	file, err := os.Open(m.Path)
	if err != nil {
		return "", fmt.Errorf("could not open video: %w", err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("could not stat video: %w", err)
	}

	c.log.Debug("start upload", "path", m.Path, "size", stat.Size(), "chunk", c.chunkSize)
	call := c.service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(file, googleapi.ChunkSize(c.chunkSize)).
		Context(ctx)
	if c.progress {
		bar := pb.New64(stat.Size())
		bar.Set(pb.Bytes, true)
		bar.Start()
		defer bar.Finish()
		call.ProgressUpdater(func(current, total int64) {
			bar.SetCurrent(current)
		})
	}

	response, err := call.Do()
	if err != nil {
		return "", newUploadError(err)
	}
	if response.Id == "" {
		return "", errors.New("youtube returned no video id")
	}
	c.log.Debug("finish upload", "path", m.Path, "edit", "https://studio.youtube.com/video/"+response.Id+"/edit")
	return response.Id, nil
}
