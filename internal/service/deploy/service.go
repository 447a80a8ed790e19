package deploy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/hosting/gocloud"
	"github.com/gooji/deployer/internal/hosting/vercel"
	"github.com/gooji/deployer/internal/repository"
	"github.com/gooji/deployer/pkg/config"
	"github.com/gooji/deployer/pkg/validate"
)

// Deployment outcomes reported to the Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

const missingFieldsMessage = "Project name and file are required"

// Hosting is the hosting provider used for user deployments.
type Hosting interface {
	Deploy(ctx context.Context, projectName string, files []domain.File) (domain.DeploymentResult, error)
	DeleteDeployment(ctx context.Context, deploymentID string) error
}

// Passthrough forwards anonymous uploads to a secondary provider.
type Passthrough interface {
	Deploy(ctx context.Context, upload gocloud.Upload) (json.RawMessage, error)
}

// Recorder observes deployment outcomes.
type Recorder interface {
	DeploymentFinished(provider, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) DeploymentFinished(string, string) {}

// Service orchestrates deployments and the ownership ledger.
type Service struct {
	hosting  Hosting
	gocloud  Passthrough
	ledger   repository.LedgerRepository
	recorder Recorder
	logger   *slog.Logger
	cfg      config.APIConfig
}

// New returns a deployment service. A nil recorder discards outcomes.
func New(hosting Hosting, passthrough Passthrough, ledger repository.LedgerRepository, recorder Recorder, logger *slog.Logger, cfg config.APIConfig) Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return Service{
		hosting:  hosting,
		gocloud:  passthrough,
		ledger:   ledger,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
	}
}

// NormalizeProjectName trims and lowercases a requested project name.
func NormalizeProjectName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Deploy validates the upload, deploys it and records the result for uid.
// Validation happens before any provider call.
func (s Service) Deploy(ctx context.Context, uid string, upload domain.Upload) (domain.DeploymentRecord, error) {
	name := NormalizeProjectName(upload.ProjectName)
	files, err := s.prepare(name, upload)
	if err != nil {
		s.recorder.DeploymentFinished(vercel.Provider, OutcomeRejected)
		return domain.DeploymentRecord{}, err
	}

	result, err := s.hosting.Deploy(ctx, name, files)
	if err != nil {
		s.recorder.DeploymentFinished(vercel.Provider, OutcomeFailed)
		s.logger.Warn("deployment failed", "user_id", uid, "project", name, "error", err)
		return domain.DeploymentRecord{}, err
	}

	record := domain.DeploymentRecord{
		UserID: uid,
		ID:     result.ID,
		Name:   name,
		URL:    result.URL,
	}
	if record.ID == "" {
		record.ID = name
	}
	if err := s.ledger.PutRecord(ctx, record); err != nil {
		s.recorder.DeploymentFinished(vercel.Provider, OutcomeFailed)
		s.logger.Error("deployment not recorded", "user_id", uid, "deployment_id", record.ID, "url", record.URL, "error", err)
		return domain.DeploymentRecord{}, fmt.Errorf("record deployment: %w", err)
	}

	s.recorder.DeploymentFinished(vercel.Provider, OutcomeSuccess)
	s.logger.Info("deployment created", "user_id", uid, "deployment_id", record.ID, "project", name, "url", record.URL)
	return record, nil
}

func (s Service) prepare(name string, upload domain.Upload) ([]domain.File, error) {
	if name == "" || upload.Content == nil {
		field := "domain"
		if name != "" {
			field = "file"
		}
		return nil, domain.NewValidationError(field, missingFieldsMessage)
	}
	if !validate.IsProjectName(name) {
		return nil, domain.NewValidationError("domain", "domain may only contain lowercase letters, numbers, '.', '_' and '-'")
	}
	filename := cleanFilename(upload.Filename)
	if filename == "" {
		return nil, domain.NewValidationError("file", "file must have a name")
	}
	if limit := s.cfg.MaxUploadBytes; limit > 0 && int64(len(upload.Content)) > limit {
		return nil, domain.NewValidationError("file", "file is too large")
	}
	return []domain.File{BuildFile(filename, upload.Content)}, nil
}

// BuildFile turns raw content into a payload entry. Text is sent as-is and
// anything that is not valid UTF-8 is base64 encoded.
func BuildFile(filename string, content []byte) domain.File {
	if utf8.Valid(content) {
		return domain.File{Path: filename, Data: string(content), Encoding: domain.EncodingUTF8}
	}
	return domain.File{Path: filename, Data: base64.StdEncoding.EncodeToString(content), Encoding: domain.EncodingBase64}
}

func cleanFilename(raw string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/"))
	switch name {
	case ".", "/", "..":
		return ""
	}
	return name
}

// DeployGoCloud forwards an anonymous upload to GoCloud.
func (s Service) DeployGoCloud(ctx context.Context, upload gocloud.Upload) (json.RawMessage, error) {
	upload.Subdomain = strings.TrimSpace(upload.Subdomain)
	if upload.Subdomain == "" || upload.Content == nil {
		s.recorder.DeploymentFinished(gocloud.Provider, OutcomeRejected)
		return nil, domain.NewValidationError("", missingFieldsMessage)
	}
	resp, err := s.gocloud.Deploy(ctx, upload)
	if err != nil {
		s.recorder.DeploymentFinished(gocloud.Provider, OutcomeFailed)
		return nil, err
	}
	s.recorder.DeploymentFinished(gocloud.Provider, OutcomeSuccess)
	s.logger.Info("gocloud deployment forwarded", "subdomain", upload.Subdomain)
	return resp, nil
}

// List returns the user's deployments, most recent first.
func (s Service) List(ctx context.Context, uid string) ([]domain.DeploymentRecord, error) {
	records, err := s.ledger.ListRecords(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	return records, nil
}

// Remove deletes a deployment record. When remote deletion is enabled and the
// record belongs to uid, the hosted deployment is deleted first on a
// best-effort basis; the record is removed whatever the outcome.
func (s Service) Remove(ctx context.Context, uid, recordID string) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return domain.NewValidationError("id", "project id is required")
	}

	if s.cfg.DeleteRemoteDeployments {
		s.removeRemote(ctx, uid, recordID)
	}

	if err := s.ledger.DeleteRecord(ctx, uid, recordID); err != nil {
		return fmt.Errorf("delete deployment record: %w", err)
	}
	s.logger.Info("deployment record removed", "user_id", uid, "deployment_id", recordID)
	return nil
}

func (s Service) removeRemote(ctx context.Context, uid, recordID string) {
	record, err := s.ledger.GetRecord(ctx, uid, recordID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("lookup before remote delete failed", "user_id", uid, "deployment_id", recordID, "error", err)
		}
		return
	}
	if err := s.hosting.DeleteDeployment(ctx, record.ID); err != nil {
		s.logger.Warn("remote deployment not deleted", "user_id", uid, "deployment_id", record.ID, "error", err)
	}
}
