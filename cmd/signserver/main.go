// signserver exposes the remote signing account as an HTTP API: POST a
// file body to /api/sign, get the signed document back.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/attestly/trustedsign/cmd/flags"
	"github.com/attestly/trustedsign/common"
	"github.com/attestly/trustedsign/httpserver"
	"github.com/attestly/trustedsign/manifest"
	"github.com/attestly/trustedsign/signer"
)

var listenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var trustAnchorsFlag = &cli.StringFlag{
	Name:  "trust-anchors",
	Usage: "PEM file with trust anchors; validates the signer's chain and gates the verify endpoint",
}

func main() {
	app := &cli.App{
		Name:    "signserver",
		Usage:   "Serve a signing API backed by a remote signing account",
		Version: common.Version,
		Flags: append(append([]cli.Flag{
			listenAddrFlag,
			trustAnchorsFlag,
			flags.LogServiceFlagFn("signserver"),
		}, flags.CommonFlags...), flags.SigningFlags...),
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
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

	if path := cCtx.String(trustAnchorsFlag.Name); path != "" {
		opts.Trust.Anchors, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not read trust anchors: %w", err)
		}
	}

	logger.Info("Initializing signer", "endpoint", opts.Endpoint.String(), "account", opts.Account)
	trustedSigner, err := signer.NewTrustedSigner(cCtx.Context, credential, opts)
	if err != nil {
		logger.Error("Failed to initialize signer", "err", err)
		return err
	}

	handler := httpserver.NewHandler(trustedSigner, manifest.NewDetached(), trustedSigner.TrustAnchors(), logger)

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(listenAddrFlag.Name))
	server, err := httpserver.New(cfg, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting server")
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")

	return nil
}
