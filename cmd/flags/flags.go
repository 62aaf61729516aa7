// Package flags holds the CLI flags and configuration builders shared by
// the signtool, signserver, and blobworker commands.
package flags

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/attestly/trustedsign/common"
	"github.com/attestly/trustedsign/credentials"
	"github.com/attestly/trustedsign/httpserver"
	"github.com/attestly/trustedsign/interfaces"
	"github.com/attestly/trustedsign/signer"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// SigningOptions builds the signer configuration from the CLI context.
func SigningOptions(cCtx *cli.Context) (signer.SigningOptions, error) {
	endpoint, err := url.Parse(cCtx.String(EndpointFlag.Name))
	if err != nil {
		return signer.SigningOptions{}, fmt.Errorf("invalid signing endpoint: %w", err)
	}

	opts := signer.NewSigningOptions(endpoint, cCtx.String(AccountFlag.Name), cCtx.String(CertificateProfileFlag.Name))
	if alg := cCtx.String(AlgorithmFlag.Name); alg != "" {
		parsed, err := interfaces.ParseSigningAlg(alg)
		if err != nil {
			return signer.SigningOptions{}, err
		}
		opts.Algorithm = parsed
	}
	if tsa := cCtx.String(TimeAuthorityFlag.Name); tsa != "" {
		opts.TimeAuthorityURL = tsa
	}
	if apiVersion := cCtx.String(APIVersionFlag.Name); apiVersion != "" {
		opts.APIVersion = apiVersion
	}
	return opts, nil
}

// Credential picks a token provider from the CLI context. Vault identity
// tokens take precedence over the OAuth2 client-credentials flow, which
// takes precedence over a raw bearer token.
func Credential(cCtx *cli.Context) (interfaces.TokenCredential, error) {
	if role := cCtx.String(VaultRoleFlag.Name); role != "" {
		return credentials.NewVaultIdentityCredential(
			cCtx.String(VaultAddrFlag.Name),
			cCtx.String(VaultTokenFlag.Name),
			role)
	}

	if clientID := cCtx.String(ClientIDFlag.Name); clientID != "" {
		return credentials.NewClientSecretCredential(
			cCtx.String(TokenURLFlag.Name),
			clientID,
			cCtx.String(ClientSecretFlag.Name))
	}

	if token := cCtx.String(BearerTokenFlag.Name); token != "" {
		return credentials.NewStaticCredential(token, time.Time{})
	}

	return nil, fmt.Errorf("no credential configured: set one of %s, %s, or %s",
		VaultRoleFlag.Name, ClientIDFlag.Name, BearerTokenFlag.Name)
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String("metrics-addr")
	enablePprof := cCtx.Bool("pprof")
	drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var EndpointFlag = &cli.StringFlag{
	Name:     "endpoint",
	Required: true,
	Usage:    "base URL of the signing service",
	EnvVars:  []string{"SIGNING_ENDPOINT"},
}

var AccountFlag = &cli.StringFlag{
	Name:     "account",
	Required: true,
	Usage:    "code-signing account name",
	EnvVars:  []string{"SIGNING_ACCOUNT"},
}

var CertificateProfileFlag = &cli.StringFlag{
	Name:     "certificate-profile",
	Required: true,
	Usage:    "certificate profile to sign under",
	EnvVars:  []string{"SIGNING_CERTIFICATE_PROFILE"},
}

var AlgorithmFlag = &cli.StringFlag{
	Name:    "algorithm",
	Usage:   "signature algorithm (ps384)",
	EnvVars: []string{"SIGNING_ALGORITHM"},
}

var TimeAuthorityFlag = &cli.StringFlag{
	Name:    "time-authority-url",
	Usage:   "RFC 3161 timestamp authority URL, '-' to disable",
	EnvVars: []string{"SIGNING_TIME_AUTHORITY_URL"},
}

var APIVersionFlag = &cli.StringFlag{
	Name:    "api-version",
	Usage:   "signing service API version override",
	EnvVars: []string{"SIGNING_API_VERSION"},
}

var BearerTokenFlag = &cli.StringFlag{
	Name:    "bearer-token",
	Usage:   "pre-acquired bearer token for the signing service",
	EnvVars: []string{"SIGNING_BEARER_TOKEN"},
}

var ClientIDFlag = &cli.StringFlag{
	Name:    "oauth-client-id",
	Usage:   "OAuth2 client id for the client-credentials flow",
	EnvVars: []string{"SIGNING_OAUTH_CLIENT_ID"},
}

var ClientSecretFlag = &cli.StringFlag{
	Name:    "oauth-client-secret",
	Usage:   "OAuth2 client secret for the client-credentials flow",
	EnvVars: []string{"SIGNING_OAUTH_CLIENT_SECRET"},
}

var TokenURLFlag = &cli.StringFlag{
	Name:    "oauth-token-url",
	Usage:   "OAuth2 token endpoint URL",
	EnvVars: []string{"SIGNING_OAUTH_TOKEN_URL"},
}

var VaultAddrFlag = &cli.StringFlag{
	Name:    "vault-addr",
	Usage:   "HashiCorp Vault address for identity tokens",
	EnvVars: []string{"VAULT_ADDR"},
}

var VaultTokenFlag = &cli.StringFlag{
	Name:    "vault-token",
	Usage:   "Vault token used to request identity tokens",
	EnvVars: []string{"VAULT_TOKEN"},
}

var VaultRoleFlag = &cli.StringFlag{
	Name:    "vault-oidc-role",
	Usage:   "Vault OIDC role issuing signing service tokens",
	EnvVars: []string{"SIGNING_VAULT_OIDC_ROLE"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

// SigningFlags configure the signer and its credential, shared by every
// command that talks to the signing service.
var SigningFlags = []cli.Flag{
	EndpointFlag,
	AccountFlag,
	CertificateProfileFlag,
	AlgorithmFlag,
	TimeAuthorityFlag,
	APIVersionFlag,
	BearerTokenFlag,
	ClientIDFlag,
	ClientSecretFlag,
	TokenURLFlag,
	VaultAddrFlag,
	VaultTokenFlag,
	VaultRoleFlag,
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
