package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/hosting/gocloud"
	"github.com/gooji/deployer/internal/service/account"
	"github.com/gooji/deployer/internal/service/deploy"
)

const (
	healthCheckTimeout   = 2 * time.Second
	multipartMemory      = 8 << 20
	multipartOverhead    = 1 << 20
	defaultMaxUpload     = 10 << 20
	maxJSONBodyBytes     = 64 << 10
	projectsPrefix       = "/api/vercel/projects/"
	msgMissingDeployment = "Project name and file are required"
)

// Options carries router settings that are not services.
type Options struct {
	BotSecret      string
	MaxUploadBytes int64
	Health         func(context.Context) error
	Metrics        *Metrics
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	account   account.Service
	deploy    deploy.Service
	botSecret string
	maxUpload int64
	health    func(context.Context) error
	metrics   *Metrics
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, accountSvc account.Service, deploySvc deploy.Service, opts Options) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		account:   accountSvc,
		deploy:    deploySvc,
		botSecret: strings.TrimSpace(opts.BotSecret),
		maxUpload: maxUpload,
		health:    opts.Health,
		metrics:   opts.Metrics,
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	if r.metrics != nil {
		r.mux.Handle("/metrics", r.metrics.Handler())
	}
	r.mux.HandleFunc("/api/register", r.audit("/api/register", r.requireBotSecret(r.handleRegister)))
	r.mux.HandleFunc("/api/user/profile", r.audit("/api/user/profile", r.requireAuth(r.handleProfile)))
	r.mux.HandleFunc("/api/deploy/vercel", r.audit("/api/deploy/vercel", r.requireAuth(r.handleDeployVercel)))
	r.mux.HandleFunc("/api/deploy/gocloud", r.audit("/api/deploy/gocloud", r.handleDeployGoCloud))
	r.mux.HandleFunc("/api/vercel/projects", r.audit("/api/vercel/projects", r.requireAuth(r.handleProjects)))
	r.mux.HandleFunc(projectsPrefix, r.audit(projectsPrefix+"{id}", r.requireAuth(r.handleProjectByID)))
	r.mux.HandleFunc("/", r.audit("unmatched", func(w http.ResponseWriter, _ *http.Request) { r.notFound(w) }))
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	creds, err := r.account.Register(req.Context(), payload.Email)
	if err != nil {
		r.fail(w, req, err, http.StatusBadRequest, "registration failed")
		return
	}
	writeSuccess(w, map[string]any{
		"username": creds.Username,
		"password": creds.Password,
	})
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	info, _ := authInfoFromContext(req.Context())
	switch req.Method {
	case http.MethodGet:
		profile, err := r.account.Profile(req.Context(), info.UserID)
		if err != nil {
			r.fail(w, req, err, http.StatusNotFound, "User not found")
			return
		}
		writeSuccess(w, map[string]any{"data": profile})
	case http.MethodPut:
		var fields map[string]json.RawMessage
		if err := decodeJSON(w, req, &fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := r.account.UpdateProfile(req.Context(), info.UserID, fields); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				r.logger.Warn("profile update for unknown user", "user_id", info.UserID)
				writeError(w, http.StatusBadRequest, "User not found")
				return
			}
			r.fail(w, req, err, http.StatusBadRequest, "profile update failed")
			return
		}
		writeSuccess(w, nil)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleDeployVercel(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())

	form, err := r.readUpload(w, req, "domain")
	if err != nil {
		r.fail(w, req, err, http.StatusBadRequest, msgMissingDeployment)
		return
	}
	record, err := r.deploy.Deploy(req.Context(), info.UserID, domain.Upload{
		ProjectName: form.name,
		Filename:    form.filename,
		Content:     form.content,
	})
	if err != nil {
		r.fail(w, req, err, http.StatusInternalServerError, "deployment failed")
		return
	}
	writeSuccess(w, map[string]any{"url": record.URL, "id": record.ID})
}

func (r *Router) handleDeployGoCloud(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	form, err := r.readUpload(w, req, "subdomain")
	if err != nil {
		r.fail(w, req, err, http.StatusBadRequest, msgMissingDeployment)
		return
	}
	resp, err := r.deploy.DeployGoCloud(req.Context(), gocloud.Upload{
		Subdomain:   form.name,
		Filename:    form.filename,
		ContentType: form.contentType,
		Content:     form.content,
	})
	if err != nil {
		if domain.IsValidation(err) {
			r.fail(w, req, err, http.StatusBadRequest, msgMissingDeployment)
			return
		}
		r.logger.Warn("gocloud deployment failed", "error", err)
		writeError(w, http.StatusInternalServerError, gocloud.FailureMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (r *Router) handleProjects(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	records, err := r.deploy.List(req.Context(), info.UserID)
	if err != nil {
		r.fail(w, req, err, http.StatusNotFound, "projects unavailable")
		return
	}
	writeSuccess(w, map[string]any{"data": records})
}

func (r *Router) handleProjectByID(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, projectsPrefix), "/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	info, _ := authInfoFromContext(req.Context())
	if err := r.deploy.Remove(req.Context(), info.UserID, id); err != nil {
		r.fail(w, req, err, http.StatusNotFound, "project could not be removed")
		return
	}
	writeSuccess(w, nil)
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.health(ctx); err != nil {
			status = "degraded"
			components["store"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["store"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"success":    status == "ok",
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

type uploadForm struct {
	name        string
	filename    string
	contentType string
	content     []byte
}

// readUpload parses a multipart body holding nameField and exactly one "file" part.
func (r *Router) readUpload(w http.ResponseWriter, req *http.Request, nameField string) (uploadForm, error) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+multipartOverhead)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return uploadForm{}, domain.NewValidationError("file", "file is too large")
		}
		return uploadForm{}, domain.NewValidationError("", msgMissingDeployment)
	}
	defer func() { _ = req.MultipartForm.RemoveAll() }()

	form := uploadForm{name: strings.TrimSpace(req.FormValue(nameField))}
	files := req.MultipartForm.File["file"]
	if form.name == "" || len(files) == 0 {
		return uploadForm{}, domain.NewValidationError("", msgMissingDeployment)
	}
	if len(files) > 1 {
		return uploadForm{}, domain.NewValidationError("file", "exactly one file is required")
	}
	content, err := readPart(files[0])
	if err != nil {
		return uploadForm{}, domain.NewValidationError("file", "Failed to read file: "+err.Error())
	}
	form.filename = files[0].Filename
	form.contentType = files[0].Header.Get("Content-Type")
	form.content = content
	return form, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxJSONBodyBytes)
	return json.NewDecoder(req.Body).Decode(v)
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
