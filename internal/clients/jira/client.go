// Package jira provides a client for the JIRA issue authority
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/tamreport/internal/common"
	"github.com/bobmcallan/tamreport/internal/models"
	"github.com/bobmcallan/tamreport/internal/resilience"
)

const (
	DefaultBaseURL   = "https://issues.redhat.com"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// JIRA renders timestamps with milliseconds and a numeric zone without colon
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// Client implements interfaces.JiraAuthority
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   *resilience.Registry
	retry      resilience.Policy
	logger     *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryPolicy sets the retry policy for transient failures
func WithRetryPolicy(p resilience.Policy) ClientOption {
	return func(c *Client) {
		c.retry = p
	}
}

// WithBreakers shares a breaker registry across clients
func WithBreakers(r *resilience.Registry) ClientOption {
	return func(c *Client) {
		c.breakers = r
	}
}

// NewClient creates a new JIRA client
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		breakers: resilience.NewRegistry(resilience.DefaultBreakerSettings()),
		retry:    resilience.DefaultPolicy(),
		logger:   common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			c.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", delay).Msg("JIRA request failed, retrying")
		}
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("JIRA API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Host returns the breaker key for the configured base URL
func (c *Client) Host() string {
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return c.baseURL
	}
	return u.Host
}

// BreakerState returns the state of this client's host breaker
func (c *Client) BreakerState() resilience.BreakerState {
	return c.breakers.For(c.Host()).State()
}

type issueResponse struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Updated string `json:"updated"`
		Status  *struct {
			Name string `json:"name"`
		} `json:"status"`
		Assignee *struct {
			DisplayName string `json:"displayName"`
			Name        string `json:"name"`
		} `json:"assignee"`
	} `json:"fields"`
}

// GetIssue fetches the authoritative state of one issue. Each attempt passes
// through the host's circuit breaker; only transient outcomes count against it.
func (c *Client) GetIssue(ctx context.Context, id string) (*models.JiraIssueState, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, common.Errorf(common.KindAuthorityMalformed, "jira", "empty issue id")
	}

	breaker := c.breakers.For(c.Host())
	return resilience.Do(ctx, c.retry, func(ctx context.Context) (*models.JiraIssueState, error) {
		return resilience.Execute(breaker, isTransient, func() (*models.JiraIssueState, error) {
			return c.fetchIssue(ctx, id)
		})
	})
}

func isTransient(err error) bool {
	return common.IsKind(err, common.KindAuthorityTransient)
}

// fetchIssue performs one rate-limited request and classifies the outcome
func (c *Client) fetchIssue(ctx context.Context, id string) (*models.JiraIssueState, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, common.NewError(common.KindAuthorityTransient, "jira", fmt.Errorf("rate limit wait: %w", err))
	}

	path := "/rest/api/2/issue/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, common.NewError(common.KindAuthorityMalformed, "jira", fmt.Errorf("failed to create request: %w", err))
	}
	q := req.URL.Query()
	q.Set("fields", "status,assignee,summary,updated")
	req.URL.RawQuery = q.Encode()

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", path).Msg("JIRA API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.Error{
			Kind:      common.KindAuthorityTransient,
			Component: "jira",
			Retryable: ctx.Err() == nil,
			Err:       fmt.Errorf("failed to execute request: %w", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
		return nil, classifyStatus(apiErr)
	}

	var issue issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &common.Error{Kind: common.KindAuthorityTransient, Component: "jira", Retryable: true, Err: err}
		}
		return nil, common.NewError(common.KindAuthorityMalformed, "jira", fmt.Errorf("failed to decode response for %s: %w", id, err))
	}

	return toIssueState(id, &issue)
}

func classifyStatus(apiErr *APIError) error {
	switch {
	case apiErr.StatusCode == http.StatusNotFound:
		return common.NewError(common.KindAuthorityNotFound, "jira", apiErr)
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return common.NewError(common.KindAuthorityDenied, "jira", apiErr)
	case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
		return &common.Error{Kind: common.KindAuthorityTransient, Component: "jira", Retryable: true, Err: apiErr}
	default:
		return common.NewError(common.KindAuthorityMalformed, "jira", apiErr)
	}
}

func toIssueState(id string, issue *issueResponse) (*models.JiraIssueState, error) {
	if issue.Fields.Status == nil || strings.TrimSpace(issue.Fields.Status.Name) == "" {
		return nil, common.Errorf(common.KindAuthorityMalformed, "jira", "issue %s has no status", id)
	}

	state := &models.JiraIssueState{
		Key:      issue.Key,
		Status:   strings.TrimSpace(issue.Fields.Status.Name),
		Assignee: models.UnassignedSentinel,
		Summary:  issue.Fields.Summary,
	}
	if state.Key == "" {
		state.Key = id
	}
	if a := issue.Fields.Assignee; a != nil {
		switch {
		case a.DisplayName != "":
			state.Assignee = a.DisplayName
		case a.Name != "":
			state.Assignee = a.Name
		}
	}
	if issue.Fields.Updated != "" {
		if t, err := time.Parse(jiraTimeLayout, issue.Fields.Updated); err == nil {
			state.UpdatedAt = t
		} else if t, ok := common.ParseDate(issue.Fields.Updated); ok {
			state.UpdatedAt = t
		}
	}
	return state, nil
}
