// blobworker drains an input blob store through the remote signing service:
// every blob is signed and the result dropped in an output store.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/attestly/trustedsign/cmd/flags"
	"github.com/attestly/trustedsign/common"
	"github.com/attestly/trustedsign/interfaces"
	"github.com/attestly/trustedsign/manifest"
	"github.com/attestly/trustedsign/signer"
	"github.com/attestly/trustedsign/storage"
	"github.com/attestly/trustedsign/worker"
)

var inputFlag = &cli.StringFlag{
	Name:     "input-location",
	Required: true,
	Usage:    "storage URI to pick up unsigned blobs from (file://, s3://)",
	EnvVars:  []string{"WORKER_INPUT_LOCATION"},
}

var outputFlag = &cli.StringFlag{
	Name:     "output-location",
	Required: true,
	Usage:    "storage URI to drop signed blobs into (file://, s3://)",
	EnvVars:  []string{"WORKER_OUTPUT_LOCATION"},
}

var intervalFlag = &cli.DurationFlag{
	Name:    "poll-interval",
	Value:   worker.DefaultPollInterval,
	Usage:   "sleep between polls of the input location",
	EnvVars: []string{"WORKER_POLL_INTERVAL"},
}

var onceFlag = &cli.BoolFlag{
	Name:  "once",
	Usage: "process the current backlog and exit instead of polling",
}

func main() {
	app := &cli.App{
		Name:    "blobworker",
		Usage:   "Sign blobs from one storage location into another",
		Version: common.Version,
		Flags: append([]cli.Flag{
			inputFlag,
			outputFlag,
			intervalFlag,
			onceFlag,
			flags.LogJsonFlag,
			flags.LogDebugFlag,
			flags.LogUidFlag,
			flags.LogServiceFlagFn("blobworker"),
		}, flags.SigningFlags...),
		Action: runWorker,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runWorker(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	opts, err := flags.SigningOptions(cCtx)
	if err != nil {
		return err
	}
	opts.Log = logger

	credential, err := flags.Credential(cCtx)
	if err != nil {
		return err
	}

	factory := storage.NewStorageBackendFactory(logger)
	input, err := factory.StorageBackendFor(interfaces.StorageBackendLocation(cCtx.String(inputFlag.Name)))
	if err != nil {
		return err
	}
	output, err := factory.StorageBackendFor(interfaces.StorageBackendLocation(cCtx.String(outputFlag.Name)))
	if err != nil {
		return err
	}

	initCtx, cancel := context.WithTimeout(cCtx.Context, 30*time.Second)
	defer cancel()
	trustedSigner, err := signer.NewTrustedSigner(initCtx, credential, opts)
	if err != nil {
		logger.Error("Failed to initialize signer", "err", err)
		return err
	}

	w, err := worker.New(worker.Config{
		Input:        input,
		Output:       output,
		Signer:       trustedSigner,
		Embedder:     manifest.NewDetached(),
		PollInterval: cCtx.Duration(intervalFlag.Name),
		Log:          logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cCtx.Bool(onceFlag.Name) {
		w.ProcessAll(ctx)
		return nil
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Worker shutdown complete")
	return nil
}
