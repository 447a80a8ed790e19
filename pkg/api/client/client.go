package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BotSecretHeader carries the shared secret on registration requests.
const BotSecretHeader = "X-Bot-Secret-Key"

// Client provides typed access to the gooji API for the bot and the CLI.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout bounds every request made by the client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API. Detail holds the raw
// "error" value when the API returned a structured provider error.
type APIError struct {
	Status  int
	Message string
	Detail  json.RawMessage
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	token       string
	headers     map[string]string
}

func jsonRequest(method, path string, payload any, token string) (request, error) {
	req := request{method: method, path: path, token: token}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("encode request body: %w", err)
		}
		req.body = bytes.NewReader(data)
		req.contentType = "application/json"
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, r request, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token := strings.TrimSpace(r.token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, val := range r.headers {
		req.Header.Set(k, val)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}

	if v == nil {
		return nil
	}
	if raw, ok := v.(*json.RawMessage); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		*raw = data
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractError reads {"success":false,"error":...}. The error value is either
// a string or a provider's structured object.
func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Error) == 0 {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	var msg string
	if err := json.Unmarshal(payload.Error, &msg); err == nil {
		apiErr.Message = strings.TrimSpace(msg)
		return apiErr
	}
	apiErr.Detail = payload.Error
	apiErr.Message = providerMessage(payload.Error)
	return apiErr
}

// providerMessage pulls a readable message out of a structured provider error
// such as {"error":{"code":"...","message":"..."}}.
func providerMessage(raw json.RawMessage) string {
	var nested struct {
		Message string `json:"message"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		switch {
		case nested.Error.Message != "":
			return nested.Error.Message
		case nested.Message != "":
			return nested.Message
		case nested.Error.Code != "":
			return nested.Error.Code
		}
	}
	return string(raw)
}

// Credentials are returned once by registration.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account for email. Only callers holding the bot secret
// are accepted.
func (c *Client) Register(ctx context.Context, botSecret, email string) (Credentials, error) {
	req, err := jsonRequest(http.MethodPost, "/api/register", map[string]string{"email": email}, "")
	if err != nil {
		return Credentials{}, err
	}
	req.headers = map[string]string{BotSecretHeader: botSecret}
	var creds Credentials
	if err := c.do(ctx, req, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Profile reflects API profile payloads.
type Profile struct {
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, token string) (Profile, error) {
	req, _ := jsonRequest(http.MethodGet, "/api/user/profile", nil, token)
	var resp struct {
		Data Profile `json:"data"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return Profile{}, err
	}
	return resp.Data, nil
}

// ProfileUpdate lists the mutable profile fields. Empty fields are omitted.
type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UpdateProfile changes the authenticated user's profile.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) error {
	req, err := jsonRequest(http.MethodPut, "/api/user/profile", update, token)
	if err != nil {
		return err
	}
	return c.do(ctx, req, nil)
}

// Deployment describes a deployment owned by the user.
type Deployment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeployVercel uploads one file as a deployment of project name.
func (c *Client) DeployVercel(ctx context.Context, token, name, filename string, content io.Reader) (Deployment, error) {
	req, err := uploadRequest("/api/deploy/vercel", "domain", name, filename, content)
	if err != nil {
		return Deployment{}, err
	}
	req.token = token
	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return Deployment{}, err
	}
	return Deployment{ID: resp.ID, Name: name, URL: resp.URL}, nil
}

// DeployGoCloud uploads one file to GoCloud and returns the provider's response verbatim.
func (c *Client) DeployGoCloud(ctx context.Context, subdomain, filename string, content io.Reader) (json.RawMessage, error) {
	req, err := uploadRequest("/api/deploy/gocloud", "subdomain", subdomain, filename, content)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, req, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ListProjects returns the user's deployments, most recent first.
func (c *Client) ListProjects(ctx context.Context, token string) ([]Deployment, error) {
	req, _ := jsonRequest(http.MethodGet, "/api/vercel/projects", nil, token)
	var resp struct {
		Data []Deployment `json:"data"`
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeleteProject removes a deployment record.
func (c *Client) DeleteProject(ctx context.Context, token, id string) error {
	req, _ := jsonRequest(http.MethodDelete, "/api/vercel/projects/"+url.PathEscape(id), nil, token)
	return c.do(ctx, req, nil)
}

func uploadRequest(path, nameField, name, filename string, content io.Reader) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField(nameField, name); err != nil {
		return request{}, fmt.Errorf("encode form: %w", err)
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return request{}, fmt.Errorf("encode form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return request{}, fmt.Errorf("read upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return request{}, fmt.Errorf("encode form: %w", err)
	}
	return request{
		method:      http.MethodPost,
		path:        path,
		body:        &buf,
		contentType: w.FormDataContentType(),
	}, nil
}
