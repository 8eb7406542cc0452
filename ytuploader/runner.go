package ytuploader

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/google/uuid"
)

// AttemptRecorder stores the outcome of every upload attempt.
type AttemptRecorder interface {
	Add(ctx context.Context, a Attempt) error
}

// Runner performs one upload run: authenticate, select, upload each candidate.
type Runner struct {
	// Connect authenticates and returns the upload session.
	Connect func(context.Context) (VideoInserter, error)

	ManifestPath  string
	Ledger        *Ledger
	Journal       AttemptRecorder // optional
	Rand          *rand.Rand
	Log           logging.Logger
	MaxUploads    int
	CategoryID    string
	PrivacyStatus string

	// DryRun selects and logs candidates without authenticating or uploading.
	DryRun bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Summary counts the outcomes of a run.
type Summary struct {
	RunID    string
	Selected int
	Uploaded int
	Skipped  int
	Failed   int
}

// Run executes the run. The only error it returns is an *AuthenticationError;
// every per-video failure is logged and counted instead.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	log := r.Log

	var videos VideoInserter
	if !r.DryRun {
		v, err := r.Connect(ctx)
		if err != nil {
			var ae *AuthenticationError
			if !errors.As(err, &ae) {
				err = &AuthenticationError{Err: err}
			}
			log.Error("could not authenticate", "error", err)
			return sum, err
		}
		videos = v
	}

	candidates := r.selectCandidates()
	sum.Selected = len(candidates)
	log.Info("candidates selected", "run", sum.RunID, "selected", len(candidates), "max", r.MaxUploads)

	if r.DryRun {
		for _, c := range candidates {
			log.Info("would upload", "path", c.VideoPath, "title", c.Title)
		}
		return sum, nil
	}

	up := NewUploader(videos, r.Ledger, log)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			log.Warning("run cancelled, stopping", "error", err)
			break
		}
		res := up.Upload(ctx, c, r.CategoryID, r.PrivacyStatus)
		switch res.Status {
		case StatusUploaded:
			sum.Uploaded++
			if err := r.Ledger.Commit(c.VideoPath, res.VideoID, r.now()); err != nil {
				log.Error("could not record upload in ledger", "path", c.VideoPath, "id", res.VideoID, "error", err)
			}
		case StatusSkipped:
			sum.Skipped++
		case StatusFailed:
			sum.Failed++
		}
		r.journal(ctx, sum.RunID, res)
	}

	log.Info("run finished", "run", sum.RunID, "uploaded", sum.Uploaded, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

// selectCandidates reads the manifest and picks this run's uploads. A manifest
// that cannot be read yields no candidates.
func (r *Runner) selectCandidates() []ManifestEntry {
	manifest, err := ReadManifest(r.ManifestPath)
	if err != nil {
		r.Log.Error("could not read manifest, nothing to upload", "error", err)
		return nil
	}
	rng := r.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	r.Log.Debug("manifest read", "path", r.ManifestPath, "entries", len(manifest))
	return SelectCandidates(manifest, r.Ledger.Record(), r.MaxUploads, rng)
}

func (r *Runner) journal(ctx context.Context, runID string, res UploadResult) {
	if r.Journal == nil {
		return
	}
	a := Attempt{
		RunID:       runID,
		VideoPath:   res.Entry.VideoPath,
		Status:      res.Status,
		VideoID:     res.VideoID,
		AttemptedAt: r.now(),
	}
	if res.Err != nil {
		a.Reason = res.Err.Error()
	}
	if err := r.Journal.Add(ctx, a); err != nil {
		r.Log.Warning("could not write attempt to journal", "path", a.VideoPath, "error", err)
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
