package signhandler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/attestly/trustedsign/certchain"
	"github.com/attestly/trustedsign/common"
	"github.com/attestly/trustedsign/interfaces"
	"github.com/attestly/trustedsign/pipeline"
)

const (
	// signPollAttempts bounds the poll loop, counting the initial
	// submission as the first attempt.
	signPollAttempts = 5

	// signPollInterval is the fixed sleep between status polls.
	signPollInterval = 250 * time.Millisecond

	// maxErrorBodySize limits how much of an error response is quoted in
	// error messages.
	maxErrorBodySize = 4 * 1024
)

// ClientOptions configures a Client. Account and CertificateProfile are
// required; everything else has working defaults.
type ClientOptions struct {
	// Account is the code-signing account name.
	Account string

	// CertificateProfile is the certificate profile used for signing.
	CertificateProfile string

	// APIVersion overrides DefaultAPIVersion when set.
	APIVersion string

	// Scope overrides DefaultScope for token acquisition when set.
	Scope string

	// Retry configures the transport retry policy. Zero values use
	// pipeline.DefaultRetryOptions.
	Retry pipeline.RetryOptions

	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Log defaults to slog.Default.
	Log *slog.Logger
}

// Client talks to a remote signing service. It is immutable after
// construction and safe for concurrent use; concurrent Sign calls each run
// an independent poll loop.
type Client struct {
	endpoint *url.URL
	opts     ClientOptions
	pipeline pipeline.Pipeline
	log      *slog.Logger
}

// NewClient creates a signing client for the given service endpoint. The
// credential is shared, never mutated, and must outlive the client.
func NewClient(endpoint *url.URL, credential interfaces.TokenCredential, opts ClientOptions) (*Client, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("endpoint is required")
	}
	if opts.Account == "" || opts.CertificateProfile == "" {
		return nil, fmt.Errorf("account and certificate profile are required")
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Scope == "" {
		opts.Scope = DefaultScope
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	p := pipeline.New(opts.HTTPClient,
		pipeline.NewUserAgentPolicy(fmt.Sprintf("%s/%s", common.PackageName, common.Version)),
		pipeline.NewRetryPolicy(opts.Retry),
		pipeline.NewAuthorizationPolicy(credential, opts.Scope),
	)

	return &Client{
		endpoint: endpoint,
		opts:     opts,
		pipeline: p,
		log:      opts.Log,
	}, nil
}

// Certificates fetches the certificate-profile bundle and returns the
// ordered, DER-encoded chain, leaf first. Structural problems in the bundle
// surface as interfaces.ErrCertificateChainInvalid.
func (c *Client) Certificates(ctx context.Context) ([][]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL("certchain"), nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize certificate request: %w", err)
	}
	req.Header.Set("Accept", ContentTypePKCS7)

	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read certificate response: %w", err)
	}

	return certchain.New(body).Certificates()
}

// Sign submits the digest for signing under the given algorithm and polls
// the resulting operation until it succeeds, fails, or the poll budget runs
// out. Returns the raw signature bytes on success.
//
// Submitting the same digest twice creates two independent operations; the
// client performs no caching.
func (c *Client) Sign(ctx context.Context, alg interfaces.SigningAlg, digest []byte) ([]byte, error) {
	if size := alg.DigestSize(); size != 0 && len(digest) != size {
		return nil, fmt.Errorf("digest length %d does not match %s output size %d", len(digest), alg, size)
	}

	payload, err := json.Marshal(SigningRequest{
		SignatureAlgorithm: alg.String(),
		Digest:             base64.StdEncoding.EncodeToString(digest),
	})
	if err != nil {
		return nil, fmt.Errorf("could not encode signing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resourceURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("could not initialize signing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	for attempt := 1; attempt <= signPollAttempts; attempt++ {
		status, err := c.sendForStatus(req)
		if err != nil {
			return nil, err
		}

		c.log.Info("Signing operation status",
			slog.String("operation", status.OperationID),
			slog.String("status", status.Status.String()),
			slog.Int("attempt", attempt))

		switch {
		case status.Status == interfaces.StatusSucceeded:
			if status.Signature == nil {
				return nil, fmt.Errorf("%w: operation %s succeeded without a signature",
					interfaces.ErrServiceRejected, status.OperationID)
			}
			signature, err := base64.StdEncoding.DecodeString(*status.Signature)
			if err != nil {
				return nil, fmt.Errorf("could not decode signature for operation %s: %w", status.OperationID, err)
			}
			return signature, nil

		case !status.Status.Pending():
			// Failed, TimedOut, NotFound, or anything unrecognized.
			return nil, fmt.Errorf("%w: operation %s finished with status %q",
				interfaces.ErrServiceRejected, status.OperationID, status.Status)
		}

		if attempt == signPollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("signing interrupted: %w", ctx.Err())
		case <-time.After(signPollInterval):
		}

		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(status.OperationID), nil)
		if err != nil {
			return nil, fmt.Errorf("could not initialize poll request: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: no terminal status after %d attempts",
		interfaces.ErrPollExhausted, signPollAttempts)
}

// sendForStatus sends a request through the pipeline and decodes the
// SigningStatus response body.
func (c *Client) sendForStatus(req *http.Request) (*SigningStatus, error) {
	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp)
	}

	var status SigningStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("could not parse signing status: %w", err)
	}
	return &status, nil
}

// resourceURL builds a service URL below the account's sign resource.
func (c *Client) resourceURL(parts ...string) string {
	segments := append([]string{
		"codesigningaccounts", c.opts.Account,
		"certificateprofiles", c.opts.CertificateProfile,
		"sign",
	}, parts...)

	u := c.endpoint.JoinPath(segments...)
	q := u.Query()
	q.Set("api-version", c.opts.APIVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return fmt.Errorf("%w: service returned %d: %s", interfaces.ErrTransport, resp.StatusCode, bytes.TrimSpace(body))
}
