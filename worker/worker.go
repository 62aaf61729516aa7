package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/attestly/trustedsign/interfaces"
	"github.com/attestly/trustedsign/manifest"
	"github.com/attestly/trustedsign/metrics"
)

// DefaultPollInterval is the sleep between polls of the input backend when
// none is configured.
const DefaultPollInterval = 30 * time.Second

// signedSuffix is appended to the blob name for the stored result.
const signedSuffix = ".signed.json"

// Worker signs blobs from an input backend into an output backend. A blob
// that fails to process is logged and left in place for the next pass; the
// loop never stops on per-blob errors.
type Worker struct {
	input    interfaces.BlobStorage
	output   interfaces.BlobStorage
	signer   manifest.Signer
	embedder manifest.Embedder
	interval time.Duration
	log      *slog.Logger
}

// Config assembles a Worker.
type Config struct {
	Input    interfaces.BlobStorage
	Output   interfaces.BlobStorage
	Signer   manifest.Signer
	Embedder manifest.Embedder

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// Log defaults to slog.Default.
	Log *slog.Logger
}

// New creates a worker from the config.
func New(cfg Config) (*Worker, error) {
	if cfg.Input == nil || cfg.Output == nil {
		return nil, fmt.Errorf("input and output backends are required")
	}
	if cfg.Signer == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("signer and embedder are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Worker{
		input:    cfg.Input,
		output:   cfg.Output,
		signer:   cfg.Signer,
		embedder: cfg.Embedder,
		interval: cfg.PollInterval,
		log:      cfg.Log,
	}, nil
}

// Run polls the input backend until the context is cancelled. It processes
// one pass immediately, then once per interval.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker started",
		slog.String("input", w.input.LocationURI()),
		slog.String("output", w.output.LocationURI()),
		slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.ProcessAll(ctx)

		select {
		case <-ctx.Done():
			w.log.Info("Worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessAll signs every blob currently in the input backend. Failures are
// logged per blob and do not stop the pass.
func (w *Worker) ProcessAll(ctx context.Context) {
	names, err := w.input.List(ctx)
	if err != nil {
		w.log.Error("Could not list input backend", "err", err)
		return
	}

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if err := w.ProcessBlob(ctx, name); err != nil {
			metrics.BlobFailures.Inc()
			w.log.Error("Could not process blob",
				slog.String("blob", name),
				"err", err)
			continue
		}
		metrics.BlobsProcessed.Inc()
		w.log.Info("Signed blob", slog.String("blob", name))
	}
}

// ProcessBlob signs a single named blob: fetch, sign, store the result in
// the output backend, then delete the input. The input blob is only removed
// after the signed result has been stored.
func (w *Worker) ProcessBlob(ctx context.Context, name string) error {
	data, err := w.input.Fetch(ctx, name)
	if err != nil {
		return fmt.Errorf("could not fetch blob: %w", err)
	}

	var signed bytes.Buffer
	if err := w.embedder.Embed(ctx, formatFor(name), bytes.NewReader(data), &signed, w.signer); err != nil {
		return fmt.Errorf("could not sign blob: %w", err)
	}

	if err := w.output.Store(ctx, name+signedSuffix, signed.Bytes()); err != nil {
		return fmt.Errorf("could not store signed blob: %w", err)
	}

	if err := w.input.Delete(ctx, name); err != nil {
		return fmt.Errorf("could not delete input blob: %w", err)
	}

	return nil
}

// formatFor derives a media type from the blob's file extension, falling
// back to the bare extension and then to octet-stream.
func formatFor(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return "application/octet-stream"
	}
	if mediaType := mime.TypeByExtension(ext); mediaType != "" {
		return mediaType
	}
	return ext
}
