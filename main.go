// Command youtube_uploader uploads a few not-yet-uploaded videos from a CSV
// manifest to YouTube and records them in a JSON ledger so they are never
// uploaded twice. It is meant to be run on a schedule (cron, systemd timer).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ausocean/utils/logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"local.project/youtube_uploader/ytuploader"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file.")
	maxUploads := flag.Int("max-uploads", ytuploader.DefaultMaxUploads, "Maximum number of videos to upload this run.")
	privacy := flag.String("privacy", ytuploader.DefaultPrivacyStatus, "Privacy status: public, unlisted or private.")
	category := flag.String("category", ytuploader.DefaultCategoryID, "YouTube category ID or name.")
	dryRun := flag.Bool("dry-run", false, "Select candidates and log them without uploading.")
	flag.Parse()

	cfg, err := ytuploader.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-uploads":
			cfg.MaxUploads = *maxUploads
		case "privacy":
			cfg.PrivacyStatus = *privacy
		case "category":
			cfg.CategoryID = *category
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		return 1
	}

	level, _ := ytuploader.ParseLogLevel(cfg.Log.Level)
	var logOut io.Writer = os.Stderr
	if cfg.Log.File != "" {
		fileLog := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
		defer fileLog.Close()
		logOut = io.MultiWriter(os.Stderr, fileLog)
	}
	log := logging.New(level, logOut, cfg.Log.Suppress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := ytuploader.AcquireRunLock(cfg.Ledger)
	if err != nil {
		log.Error("could not lock ledger", "error", err)
		return 1
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warning("could not release run lock", "error", err)
		}
	}()

	r := &ytuploader.Runner{
		ManifestPath:  cfg.Manifest,
		Ledger:        ytuploader.OpenLedger(cfg.Ledger, log),
		Rand:          rand.New(rand.NewSource(time.Now().UnixNano())),
		Log:           log,
		MaxUploads:    cfg.MaxUploads,
		CategoryID:    cfg.CategoryID,
		PrivacyStatus: cfg.PrivacyStatus,
		DryRun:        *dryRun,
	}

	if cfg.Journal != "" && !*dryRun {
		j, err := ytuploader.OpenJournal(ctx, cfg.Journal)
		if err != nil {
			log.Warning("journal unavailable, continuing without it", "path", cfg.Journal, "error", err)
		} else {
			defer j.Close()
			r.Journal = j
		}
	}

	auth := &ytuploader.Authenticator{
		SecretsLocation: cfg.ClientSecrets,
		TokenLocation:   cfg.Token,
		Client:          ytuploader.ClientOptions{ChunkSize: cfg.ChunkSize, Progress: cfg.Progress},
		Log:             log,
	}
	r.Connect = func(ctx context.Context) (ytuploader.VideoInserter, error) {
		c, err := auth.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	log.Info("start", "manifest", cfg.Manifest, "ledger", cfg.Ledger, "max", cfg.MaxUploads, "dryRun", *dryRun)
	if _, err := r.Run(ctx); err != nil {
		return 1
	}
	return 0
}
