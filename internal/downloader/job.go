package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"memosy/internal/metrics"

	"github.com/google/uuid"
)

// Job is one URL's trip through the downloader. Every job owns a private
// directory so two URLs with the same stem never share an output file.
type Job struct {
	ID   string
	URL  string
	Stem string
	Dir  string
	Path string
}

// NewJob creates the job directory under outputDir.
func NewJob(outputDir, rawURL string) (*Job, error) {
	id := uuid.NewString()
	stem := DeriveStem(rawURL)
	dir := filepath.Join(outputDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job directory: %w", err)
	}
	return &Job{
		ID:   id,
		URL:  rawURL,
		Stem: stem,
		Dir:  dir,
		Path: filepath.Join(dir, stem+".mp4"),
	}, nil
}

// Cleanup removes the downloaded file and the job directory. A file that was
// never written is not an error.
func (j *Job) Cleanup() error {
	var errs []error
	if err := os.Remove(j.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("remove %s: %w", j.Path, err))
	}
	// yt-dlp leaves .part/.ytdl files behind on interrupted runs.
	if err := os.RemoveAll(j.Dir); err != nil {
		errs = append(errs, fmt.Errorf("remove %s: %w", j.Dir, err))
	}
	return errors.Join(errs...)
}

// Invoker runs one download request.
type Invoker interface {
	Download(ctx context.Context, req Request) (string, error)
}

// Fetcher turns URLs into jobs with a downloaded file.
type Fetcher struct {
	invoker   Invoker
	outputDir string
	logger    *slog.Logger
}

func NewFetcher(invoker Invoker, outputDir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{invoker: invoker, outputDir: outputDir, logger: logger}
}

// Fetch downloads rawURL into a fresh job. On failure nothing is left on disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Job, error) {
	job, err := NewJob(f.outputDir, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	metrics.DownloadsInFlight.Inc()
	start := time.Now()
	path, err := f.invoker.Download(ctx, Request{URL: rawURL, OutputPath: job.Path})
	elapsed := time.Since(start)
	metrics.DownloadsInFlight.Dec()
	metrics.DownloadLatency.Observe(elapsed.Seconds())
	if err != nil {
		metrics.DownloadsFailed.Inc()
		if cerr := job.Cleanup(); cerr != nil {
			f.logger.Error("failed to clean up job after download error", "job", job.ID, "err", cerr)
		}
		if !errors.Is(err, ErrDownloadFailed) {
			err = fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}
		return nil, err
	}

	metrics.DownloadsOK.Inc()
	job.Path = path
	f.logger.Info("downloaded", "job", job.ID, "url", rawURL, "path", path, "elapsed", elapsed)
	return job, nil
}
