// signtool signs local files through the remote signing service and
// verifies the resulting detached envelopes.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/attestly/trustedsign/certchain"
	"github.com/attestly/trustedsign/cmd/flags"
	"github.com/attestly/trustedsign/common"
	"github.com/attestly/trustedsign/manifest"
	"github.com/attestly/trustedsign/signer"
)

const signedSuffix = ".signed.json"

var inputFlag = &cli.StringFlag{
	Name:     "input",
	Aliases:  []string{"i"},
	Required: true,
	Usage:    "path of the file to sign",
}

var outputFlag = &cli.StringFlag{
	Name:    "output",
	Aliases: []string{"o"},
	Usage:   "path of the signed output (default: input + " + signedSuffix + ")",
}

var formatFlag = &cli.StringFlag{
	Name:  "format",
	Usage: "content media type (default: inferred from the input extension)",
}

var envelopeFlag = &cli.StringFlag{
	Name:     "envelope",
	Aliases:  []string{"e"},
	Required: true,
	Usage:    "path of the signed envelope to verify",
}

var contentFlag = &cli.StringFlag{
	Name:    "content",
	Aliases: []string{"c"},
	Usage:   "path of the original content; checks the digest when given",
}

var anchorsFlag = &cli.StringFlag{
	Name:  "trust-anchors",
	Usage: "PEM file with trust anchors; checks the chain when given",
}

var exportChainFlag = &cli.StringFlag{
	Name:  "export-chain",
	Usage: "write the envelope's certificate chain as PEM to this path",
}

func main() {
	app := &cli.App{
		Name:    "signtool",
		Usage:   "Sign files through a remote signing account",
		Version: common.Version,
		Commands: []*cli.Command{
			{
				Name:   "sign",
				Usage:  "Sign a file and write the detached envelope",
				Flags:  append([]cli.Flag{inputFlag, outputFlag, formatFlag, flags.LogJsonFlag, flags.LogDebugFlag, flags.LogServiceFlagFn("signtool")}, flags.SigningFlags...),
				Action: runSign,
			},
			{
				Name:   "verify",
				Usage:  "Verify a detached envelope",
				Flags:  []cli.Flag{envelopeFlag, contentFlag, anchorsFlag, exportChainFlag, flags.LogJsonFlag, flags.LogDebugFlag, flags.LogServiceFlagFn("signtool")},
				Action: runVerify,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runSign(cCtx *cli.Context) error {
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

	inputPath := cCtx.String(inputFlag.Name)
	content, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("could not read input: %w", err)
	}

	format := cCtx.String(formatFlag.Name)
	if format == "" {
		format = formatForPath(inputPath)
	}

	trustedSigner, err := signer.NewTrustedSigner(cCtx.Context, credential, opts)
	if err != nil {
		return err
	}

	var signed bytes.Buffer
	if err := manifest.NewDetached().Embed(cCtx.Context, format, bytes.NewReader(content), &signed, trustedSigner); err != nil {
		return err
	}

	outputPath := cCtx.String(outputFlag.Name)
	if outputPath == "" {
		outputPath = inputPath + signedSuffix
	}
	if err := os.WriteFile(outputPath, signed.Bytes(), 0644); err != nil {
		return fmt.Errorf("could not write output: %w", err)
	}

	logger.Info("Signed file",
		"input", inputPath,
		"output", outputPath,
		"format", format)
	return nil
}

func runVerify(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	envelope, err := os.ReadFile(cCtx.String(envelopeFlag.Name))
	if err != nil {
		return fmt.Errorf("could not read envelope: %w", err)
	}

	var content *os.File
	if path := cCtx.String(contentFlag.Name); path != "" {
		content, err = os.Open(path)
		if err != nil {
			return fmt.Errorf("could not open content: %w", err)
		}
		defer content.Close()
	}

	var anchors []byte
	if path := cCtx.String(anchorsFlag.Name); path != "" {
		anchors, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not read trust anchors: %w", err)
		}
	}

	var contentReader io.Reader
	if content != nil {
		contentReader = content
	}

	env, err := manifest.Verify(envelope, contentReader, anchors)
	if err != nil {
		return fmt.Errorf("envelope is not valid: %w", err)
	}

	if path := cCtx.String(exportChainFlag.Name); path != "" {
		if err := os.WriteFile(path, certchain.EncodePEM(env.CertificateChain), 0644); err != nil {
			return fmt.Errorf("could not export certificate chain: %w", err)
		}
		logger.Info("Exported certificate chain", "path", path)
	}

	logger.Info("Envelope is valid",
		"format", env.Format,
		"algorithm", env.Algorithm,
		"signedAt", env.SignedAt)
	return nil
}

func formatForPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}
	if mediaType := mime.TypeByExtension(ext); mediaType != "" {
		return mediaType
	}
	return ext
}
