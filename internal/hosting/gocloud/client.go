// Package gocloud forwards uploads to the GoCloud static hosting endpoint.
package gocloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gooji/deployer/internal/domain"
)

const (
	// Provider names GoCloud in errors and metrics.
	Provider = "gocloud"

	// FailureMessage is reported for any unsuccessful GoCloud deployment.
	FailureMessage = "Failed to deploy to GoCloud"

	defaultURL     = "https://www.gocloud.web.id/deploy"
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

// Upload is the multipart payload GoCloud expects.
type Upload struct {
	Subdomain   string
	Filename    string
	ContentType string
	Content     []byte
}

// Client posts uploads to GoCloud.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// New constructs a Client. Empty url and non-positive timeout fall back to defaults.
func New(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if strings.TrimSpace(url) == "" {
		url = defaultURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Deploy forwards the upload and returns GoCloud's JSON response verbatim.
func (c *Client) Deploy(ctx context.Context, upload Upload) (json.RawMessage, error) {
	body, contentType, err := encode(upload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("build gocloud request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("gocloud unreachable", "error", err)
		return nil, &domain.ProviderError{
			Provider: Provider,
			Message:  FailureMessage,
			Err:      fmt.Errorf("%w: %w", domain.ErrNetwork, err),
		}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.ProviderError{Provider: Provider, Status: resp.StatusCode, Message: FailureMessage, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("gocloud deploy rejected", "status", resp.StatusCode, "subdomain", upload.Subdomain)
		return nil, &domain.ProviderError{Provider: Provider, Status: resp.StatusCode, Message: FailureMessage}
	}
	payload = bytes.TrimSpace(payload)
	if !json.Valid(payload) {
		return nil, &domain.ProviderError{Provider: Provider, Status: resp.StatusCode, Message: FailureMessage}
	}
	return json.RawMessage(payload), nil
}

func encode(upload Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("subdomain", upload.Subdomain); err != nil {
		return nil, "", fmt.Errorf("write subdomain field: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, upload.Filename))
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
