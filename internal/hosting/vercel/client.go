// Package vercel deploys single-file static sites through the Vercel REST API.
package vercel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/gooji/deployer/internal/domain"
)

const (
	// Provider names the hosting provider in errors and metrics.
	Provider = "vercel"

	defaultBaseURL      = "https://api.vercel.com"
	defaultDomain       = "vercel.app"
	defaultTimeout      = 30 * time.Second
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 500 * time.Millisecond
	maxErrorBodyBytes   = 1 << 20
	frameworkOther      = "other"
)

// Config describes how to reach the Vercel API.
type Config struct {
	BaseURL     string
	Token       string
	TeamID      string
	Domain      string
	Timeout     time.Duration
	MaxAttempts int
	// RetryInterval is the first delay between project creation attempts.
	RetryInterval time.Duration
	HTTPClient    *http.Client
}

// Client talks to the Vercel API.
type Client struct {
	baseURL       string
	token         string
	teamID        string
	domain        string
	maxAttempts   uint
	retryInterval time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// New constructs a Client, filling in defaults for unset fields.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	domainSuffix := strings.Trim(strings.TrimSpace(cfg.Domain), ".")
	if domainSuffix == "" {
		domainSuffix = defaultDomain
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = defaultMaxAttempts
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryBackoff
	}
	return &Client{
		baseURL:       base,
		token:         strings.TrimSpace(cfg.Token),
		teamID:        strings.TrimSpace(cfg.TeamID),
		domain:        domainSuffix,
		maxAttempts:   uint(attempts),
		retryInterval: interval,
		httpClient:    httpClient,
		logger:        logger,
	}
}

type projectRequest struct {
	Name      string `json:"name"`
	Framework string `json:"framework"`
}

type deploymentFile struct {
	File     string `json:"file"`
	Data     string `json:"data"`
	Encoding string `json:"encoding,omitempty"`
}

type projectSettings struct {
	Framework string `json:"framework"`
}

type deploymentRequest struct {
	Name            string           `json:"name"`
	Files           []deploymentFile `json:"files"`
	ProjectSettings projectSettings  `json:"projectSettings"`
}

type deploymentResponse struct {
	ID    string   `json:"id"`
	URL   string   `json:"url"`
	Alias []string `json:"alias"`
}

// Deploy makes sure the project exists and submits files as a new deployment.
func (c *Client) Deploy(ctx context.Context, projectName string, files []domain.File) (domain.DeploymentResult, error) {
	if err := c.EnsureProject(ctx, projectName); err != nil {
		return domain.DeploymentResult{}, err
	}
	return c.CreateDeployment(ctx, projectName, files)
}

// EnsureProject creates the project. An existing project (409) counts as
// success. Network failures, 429 and 5xx responses are retried.
func (c *Client) EnsureProject(ctx context.Context, name string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		status, body, err := c.send(ctx, http.MethodPost, "/v9/projects", projectRequest{Name: name, Framework: frameworkOther})
		if err != nil {
			return struct{}{}, err
		}
		switch {
		case status == http.StatusOK, status == http.StatusCreated, status == http.StatusConflict:
			return struct{}{}, nil
		case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
			return struct{}{}, providerError(status, body)
		default:
			return struct{}{}, backoff.Permanent(providerError(status, body))
		}
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("vercel project creation retry", "project", name, "wait_ms", wait.Milliseconds(), "error", err)
		}),
	)
	return err
}

// CreateDeployment submits one deployment. It is never retried.
func (c *Client) CreateDeployment(ctx context.Context, projectName string, files []domain.File) (domain.DeploymentResult, error) {
	payload := deploymentRequest{
		Name:            projectName,
		Files:           make([]deploymentFile, 0, len(files)),
		ProjectSettings: projectSettings{Framework: frameworkOther},
	}
	for _, f := range files {
		entry := deploymentFile{File: f.Path, Data: f.Data}
		if f.Encoding == domain.EncodingBase64 {
			entry.Encoding = domain.EncodingBase64
		}
		payload.Files = append(payload.Files, entry)
	}

	status, body, err := c.send(ctx, http.MethodPost, "/v13/deployments", payload)
	if err != nil {
		return domain.DeploymentResult{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return domain.DeploymentResult{}, providerError(status, body)
	}

	var resp deploymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.DeploymentResult{}, &domain.ProviderError{
			Provider: Provider,
			Status:   status,
			Message:  "invalid deployment response",
			Err:      err,
		}
	}
	return domain.DeploymentResult{ID: resp.ID, URL: c.publicURL(projectName, resp)}, nil
}

// DeleteDeployment removes a deployment. A deployment that no longer exists counts as removed.
func (c *Client) DeleteDeployment(ctx context.Context, deploymentID string) error {
	status, body, err := c.send(ctx, http.MethodDelete, "/v13/deployments/"+url.PathEscape(deploymentID), nil)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return providerError(status, body)
	}
}

func (c *Client) publicURL(projectName string, resp deploymentResponse) string {
	for _, alias := range resp.Alias {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if strings.HasPrefix(alias, "http://") || strings.HasPrefix(alias, "https://") {
			return alias
		}
		return "https://" + alias
	}
	return fmt.Sprintf("https://%s.%s", projectName, c.domain)
}

func (c *Client) endpoint(path string) string {
	if c.teamID == "" {
		return c.baseURL + path
	}
	return c.baseURL + path + "?teamId=" + url.QueryEscape(c.teamID)
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, backoff.Permanent(fmt.Errorf("encode vercel request: %w", err))
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return 0, nil, backoff.Permanent(fmt.Errorf("build vercel request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &domain.ProviderError{
			Provider: Provider,
			Message:  "vercel is unreachable",
			Err:      fmt.Errorf("%w: %w", domain.ErrNetwork, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &domain.ProviderError{
			Provider: Provider,
			Status:   resp.StatusCode,
			Message:  "read vercel response",
			Err:      fmt.Errorf("%w: %w", domain.ErrNetwork, err),
		}
	}
	return resp.StatusCode, body, nil
}

func providerError(status int, body []byte) *domain.ProviderError {
	perr := &domain.ProviderError{Provider: Provider, Status: status}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		perr.Body = json.RawMessage(trimmed)
		return perr
	}
	if len(trimmed) > 0 {
		perr.Message = string(trimmed)
	} else {
		perr.Message = http.StatusText(status)
	}
	return perr
}
