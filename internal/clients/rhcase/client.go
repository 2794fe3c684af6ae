// Package rhcase provides the case source adapter for the rhcase support-case tool
package rhcase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/interfaces"
	"github.com/bobmcallan/tamreport/internal/models"
	"github.com/bobmcallan/tamreport/internal/resilience"
)

const (
	DefaultToolPath = "rhcase"
	DefaultTimeout  = 300 * time.Second
)

// Markers in tool output that identify an authorization failure
var authMarkers = []string{
	"unauthorized",
	"401",
	"403",
	"forbidden",
	"authentication failed",
	"authentication required",
	"invalid token",
	"token expired",
	"not authorized",
}

// Markers in tool output that identify a transient network failure
var transientMarkers = []string{
	"timed out",
	"timeout",
	"connection refused",
	"connection reset",
	"temporarily unavailable",
	"temporary failure",
	"service unavailable",
	"502",
	"503",
	"504",
	"network is unreachable",
	"no route to host",
}

// Client implements interfaces.CaseSource by invoking the case tool
type Client struct {
	toolPath string
	timeout  time.Duration
	runner   Runner
	retry    resilience.Policy
	logger   *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithToolPath sets the case tool executable
func WithToolPath(path string) ClientOption {
	return func(c *Client) {
		c.toolPath = path
	}
}

// WithTimeout sets the deadline for one invocation
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRunner replaces the process runner
func WithRunner(r Runner) ClientOption {
	return func(c *Client) {
		c.runner = r
	}
}

// WithRetryPolicy sets the retry policy for transient failures
func WithRetryPolicy(p resilience.Policy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new case tool client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		toolPath: DefaultToolPath,
		timeout:  DefaultTimeout,
		runner:   ExecRunner{},
		retry:    resilience.DefaultPolicy(),
		logger:   common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("Case tool invocation failed, retrying")
		}
	}

	return c
}

// Args composes the tool invocation for a query
func Args(q interfaces.CaseQuery) []string {
	months := q.LookbackMonths
	if months < 1 {
		months = 1
	}
	args := []string{"list", q.AccountNumber, "--months", strconv.Itoa(months)}
	for _, group := range q.SBRGroupFilter {
		args = append(args, "--filter", "SBR Group:"+group)
	}
	return args
}

// ListCases invokes the tool for the query and parses its output. Transient
// failures are retried per the client's policy; authorization failures are not.
func (c *Client) ListCases(ctx context.Context, q interfaces.CaseQuery) (*interfaces.CaseFetch, error) {
	if !common.IsAccountNumber(q.AccountNumber) {
		return nil, common.Errorf(common.KindSourceMalformed, "rhcase", "invalid account number %q", q.AccountNumber)
	}

	args := Args(q)
	out, err := resilience.Do(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.invoke(ctx, args)
	})
	if err != nil {
		return nil, err
	}

	records, err := ParseOutput(out)
	if err != nil {
		return nil, err
	}

	cases := filterBySBRGroup(dedupe(records), q.SBRGroupFilter)
	c.logger.Info().
		Str("account", q.AccountNumber).
		Int("months", q.LookbackMonths).
		Int("parsed", len(records)).
		Int("cases", len(cases)).
		Msg("Case tool returned cases")

	return &interfaces.CaseFetch{Cases: cases, Source: models.SourceLive}, nil
}

// invoke runs one attempt under the per-invocation deadline and classifies failures
func (c *Client) invoke(ctx context.Context, args []string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	c.logger.Debug().Str("tool", c.toolPath).Strs("args", args).Msg("Invoking case tool")
	stdout, stderr, err := c.runner.Run(attemptCtx, c.toolPath, args)
	if err == nil {
		if msg := combinedOutput(stdout, stderr); containsAny(msg, authMarkers) && len(strings.TrimSpace(string(stdout))) == 0 {
			return nil, common.Errorf(common.KindSourceAuth, "rhcase", "case tool reported an authorization failure: %s", firstLine(msg))
		}
		return stdout, nil
	}

	// Deadline of this attempt, parent still live
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &common.Error{
			Kind:      common.KindSourceUnavailable,
			Component: "rhcase",
			Retryable: true,
			Err:       fmt.Errorf("case tool exceeded deadline of %s", c.timeout),
		}
	}
	if ctx.Err() != nil {
		return nil, common.NewError(common.KindSourceUnavailable, "rhcase", fmt.Errorf("case tool cancelled: %w", ctx.Err()))
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return nil, common.NewError(common.KindSourceUnavailable, "rhcase", fmt.Errorf("cannot execute %s: %w", c.toolPath, err))
	}

	msg := combinedOutput(stdout, stderr)
	if containsAny(msg, authMarkers) {
		return nil, common.Errorf(common.KindSourceAuth, "rhcase", "case tool reported an authorization failure: %s", firstLine(msg))
	}

	return nil, &common.Error{
		Kind:      common.KindSourceUnavailable,
		Component: "rhcase",
		Retryable: containsAny(msg, transientMarkers),
		Err:       fmt.Errorf("case tool failed after %s: %v: %s", time.Since(start).Round(time.Millisecond), err, firstLine(msg)),
	}
}

func combinedOutput(stdout, stderr []byte) string {
	return strings.ToLower(string(stderr) + "\n" + string(stdout))
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

// dedupe keeps the first occurrence of each case number
func dedupe(records []models.CaseRecord) []models.CaseRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]models.CaseRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.CaseNumber]; ok {
			continue
		}
		seen[r.CaseNumber] = struct{}{}
		out = append(out, r)
	}
	return out
}

// filterBySBRGroup drops cases whose SBR group is known and outside the filter
func filterBySBRGroup(records []models.CaseRecord, filter []string) []models.CaseRecord {
	if len(filter) == 0 {
		return records
	}
	out := records[:0]
	for _, r := range records {
		if r.SBRGroup == "" || sbrMatches(r.SBRGroup, filter) {
			out = append(out, r)
		}
	}
	return out
}

func sbrMatches(groups string, filter []string) bool {
	for _, g := range strings.Split(groups, ",") {
		g = strings.TrimSpace(g)
		for _, f := range filter {
			if strings.EqualFold(g, f) {
				return true
			}
		}
	}
	return false
}
