package deploy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/internal/hosting/gocloud"
	"github.com/gooji/deployer/internal/repository/memory"
	"github.com/gooji/deployer/pkg/config"
	"github.com/gooji/deployer/pkg/logger"
)

type fakeHosting struct {
	deployErr   error
	noID        bool
	deployCalls int
	lastName    string
	lastFiles   []domain.File
	deleteErr   error
	deleted     []string
}

func (f *fakeHosting) Deploy(_ context.Context, name string, files []domain.File) (domain.DeploymentResult, error) {
	f.deployCalls++
	f.lastName = name
	f.lastFiles = files
	if f.deployErr != nil {
		return domain.DeploymentResult{}, f.deployErr
	}
	id := fmt.Sprintf("dpl_%d", f.deployCalls)
	if f.noID {
		id = ""
	}
	return domain.DeploymentResult{ID: id, URL: "https://" + name + ".vercel.app"}, nil
}

func (f *fakeHosting) DeleteDeployment(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakePassthrough struct {
	calls int
	resp  json.RawMessage
	err   error
}

func (f *fakePassthrough) Deploy(context.Context, gocloud.Upload) (json.RawMessage, error) {
	f.calls++
	return f.resp, f.err
}

type countingRecorder map[string]int

func (c countingRecorder) DeploymentFinished(provider, outcome string) {
	c[provider+"/"+outcome]++
}

func steppingClock() func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestService(hosting *fakeHosting, mutate func(*config.APIConfig)) (Service, *memory.Store, countingRecorder) {
	cfg := config.APIConfig{DeleteRemoteDeployments: true, MaxUploadBytes: 1 << 20}
	if mutate != nil {
		mutate(&cfg)
	}
	store := memory.New().WithClock(steppingClock())
	rec := countingRecorder{}
	return New(hosting, &fakePassthrough{}, store, rec, logger.Discard(), cfg), store, rec
}

func TestDeployTwiceSameNameCreatesTwoRecords(t *testing.T) {
	hosting := &fakeHosting{}
	svc, store, rec := newTestService(hosting, nil)
	upload := domain.Upload{ProjectName: " My-Site ", Filename: "index.html", Content: []byte("<h1>hi</h1>")}

	first, err := svc.Deploy(context.Background(), "uid-1", upload)
	if err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	second, err := svc.Deploy(context.Background(), "uid-1", upload)
	if err != nil {
		t.Fatalf("second deploy: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %q", first.ID)
	}
	if hosting.lastName != "my-site" {
		t.Fatalf("expected normalized project name, got %q", hosting.lastName)
	}

	records, err := store.ListRecords(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != second.ID {
		t.Fatalf("expected most recent first, got %q", records[0].ID)
	}
	if rec["vercel/success"] != 2 {
		t.Fatalf("expected two successes recorded, got %v", rec)
	}
}

func TestDeployValidationHappensBeforeProviderCall(t *testing.T) {
	cases := []domain.Upload{
		{ProjectName: "site", Filename: "index.html"},
		{ProjectName: "", Filename: "index.html", Content: []byte("x")},
		{ProjectName: "   ", Filename: "index.html", Content: []byte("x")},
		{ProjectName: "bad/name", Filename: "index.html", Content: []byte("x")},
		{ProjectName: "site", Filename: "", Content: []byte("x")},
	}
	for _, upload := range cases {
		hosting := &fakeHosting{}
		svc, _, rec := newTestService(hosting, nil)

		_, err := svc.Deploy(context.Background(), "uid-1", upload)
		if !domain.IsValidation(err) {
			t.Fatalf("upload %+v: expected validation error, got %v", upload, err)
		}
		if hosting.deployCalls != 0 {
			t.Fatalf("upload %+v: hosting provider must not be called", upload)
		}
		if rec["vercel/rejected"] != 1 {
			t.Fatalf("expected rejection to be recorded, got %v", rec)
		}
	}
}

func TestDeployRejectsOversizedFile(t *testing.T) {
	hosting := &fakeHosting{}
	svc, _, _ := newTestService(hosting, func(c *config.APIConfig) { c.MaxUploadBytes = 4 })

	_, err := svc.Deploy(context.Background(), "uid-1", domain.Upload{ProjectName: "site", Filename: "a.txt", Content: []byte("too long")})
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeployProviderFailureWritesNoRecord(t *testing.T) {
	perr := &domain.ProviderError{Provider: "vercel", Status: 400, Body: json.RawMessage(`{"error":{"code":"bad"}}`)}
	hosting := &fakeHosting{deployErr: perr}
	svc, store, rec := newTestService(hosting, nil)

	_, err := svc.Deploy(context.Background(), "uid-1", domain.Upload{ProjectName: "site", Filename: "index.html", Content: []byte("x")})
	if !errors.Is(err, perr) {
		t.Fatalf("expected provider error, got %v", err)
	}
	records, _ := store.ListRecords(context.Background(), "uid-1")
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if rec["vercel/failed"] != 1 {
		t.Fatalf("expected failure recorded, got %v", rec)
	}
}

func TestDeployFallsBackToProjectNameAsKey(t *testing.T) {
	svc, _, _ := newTestService(&fakeHosting{noID: true}, nil)

	record, err := svc.Deploy(context.Background(), "uid-1", domain.Upload{ProjectName: "site", Filename: "index.html", Content: []byte("x")})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if record.ID != "site" {
		t.Fatalf("expected project name as key, got %q", record.ID)
	}
}

func TestDeployStripsDirectoriesFromFilename(t *testing.T) {
	hosting := &fakeHosting{}
	svc, _, _ := newTestService(hosting, nil)

	_, err := svc.Deploy(context.Background(), "uid-1", domain.Upload{ProjectName: "site", Filename: `..\..\etc\index.html`, Content: []byte("x")})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if hosting.lastFiles[0].Path != "index.html" {
		t.Fatalf("unexpected path %q", hosting.lastFiles[0].Path)
	}
}

func TestBuildFileEncodings(t *testing.T) {
	text := BuildFile("index.html", []byte("héllo"))
	if text.Encoding != domain.EncodingUTF8 || text.Data != "héllo" {
		t.Fatalf("unexpected text file %+v", text)
	}
	binary := []byte{0x89, 0x50, 0x4e, 0x47, 0xff}
	bin := BuildFile("logo.png", binary)
	if bin.Encoding != domain.EncodingBase64 || bin.Data != base64.StdEncoding.EncodeToString(binary) {
		t.Fatalf("unexpected binary file %+v", bin)
	}
}

func TestRemoveIsTwoPhase(t *testing.T) {
	hosting := &fakeHosting{deleteErr: errors.New("vercel down")}
	svc, store, _ := newTestService(hosting, nil)

	record, err := svc.Deploy(context.Background(), "uid-1", domain.Upload{ProjectName: "site", Filename: "index.html", Content: []byte("x")})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := svc.Remove(context.Background(), "uid-1", record.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(hosting.deleted) != 1 || hosting.deleted[0] != record.ID {
		t.Fatalf("expected remote delete of %q, got %v", record.ID, hosting.deleted)
	}
	if _, err := store.GetRecord(context.Background(), "uid-1", record.ID); err == nil {
		t.Fatal("record should be gone even though the remote delete failed")
	}
}

func TestRemoveMissingRecordIsIdempotent(t *testing.T) {
	hosting := &fakeHosting{}
	svc, _, _ := newTestService(hosting, nil)

	for i := 0; i < 2; i++ {
		if err := svc.Remove(context.Background(), "uid-1", "dpl_missing"); err != nil {
			t.Fatalf("Remove #%d: %v", i, err)
		}
	}
	if len(hosting.deleted) != 0 {
		t.Fatalf("no remote delete expected for unknown records, got %v", hosting.deleted)
	}
}

func TestRemoveNeverTouchesOtherUsersDeployments(t *testing.T) {
	hosting := &fakeHosting{}
	svc, _, _ := newTestService(hosting, nil)

	record, err := svc.Deploy(context.Background(), "owner", domain.Upload{ProjectName: "site", Filename: "index.html", Content: []byte("x")})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if err := svc.Remove(context.Background(), "intruder", record.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(hosting.deleted) != 0 {
		t.Fatalf("remote delete must not run for a record the caller does not own")
	}
}

func TestRemoveLedgerOnlyWhenRemoteDisabled(t *testing.T) {
	hosting := &fakeHosting{}
	svc, _, _ := newTestService(hosting, func(c *config.APIConfig) { c.DeleteRemoteDeployments = false })

	record, _ := svc.Deploy(context.Background(), "uid-1", domain.Upload{ProjectName: "site", Filename: "index.html", Content: []byte("x")})
	if err := svc.Remove(context.Background(), "uid-1", record.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(hosting.deleted) != 0 {
		t.Fatalf("remote delete disabled, got %v", hosting.deleted)
	}
}

func TestDeployGoCloud(t *testing.T) {
	pass := &fakePassthrough{resp: json.RawMessage(`{"success":true}`)}
	rec := countingRecorder{}
	svc := New(&fakeHosting{}, pass, memory.New(), rec, logger.Discard(), config.APIConfig{})

	if _, err := svc.DeployGoCloud(context.Background(), gocloud.Upload{Subdomain: "", Content: []byte("x")}); !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if pass.calls != 0 {
		t.Fatal("passthrough must not be called for invalid input")
	}

	resp, err := svc.DeployGoCloud(context.Background(), gocloud.Upload{Subdomain: "blog", Filename: "index.html", Content: []byte("x")})
	if err != nil {
		t.Fatalf("DeployGoCloud: %v", err)
	}
	if string(resp) != `{"success":true}` {
		t.Fatalf("unexpected passthrough body %s", resp)
	}
	if rec["gocloud/success"] != 1 {
		t.Fatalf("expected success recorded, got %v", rec)
	}
}
