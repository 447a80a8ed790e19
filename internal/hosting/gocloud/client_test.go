package gocloud

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gooji/deployer/internal/domain"
	"github.com/gooji/deployer/pkg/logger"
)

func TestDeployForwardsMultipart(t *testing.T) {
	var gotSubdomain, gotFilename, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotSubdomain = r.FormValue("subdomain")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotFilename = header.Filename
		gotContent = string(data)
		_, _ = w.Write([]byte(`{"success":true,"url":"https://blog.gocloud.web.id"}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, logger.Discard())
	resp, err := client.Deploy(context.Background(), Upload{
		Subdomain: "blog",
		Filename:  "index.html",
		Content:   []byte("<h1>hi</h1>"),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"url":"https://blog.gocloud.web.id"}`, string(resp))
	assert.Equal(t, "blog", gotSubdomain)
	assert.Equal(t, "index.html", gotFilename)
	assert.Equal(t, "<h1>hi</h1>", gotContent)
}

func TestDeployNonOKIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"subdomain taken"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, logger.Discard()).Deploy(context.Background(), Upload{Subdomain: "x", Filename: "a"})
	perr, ok := domain.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, FailureMessage, perr.Message)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
}

func TestDeployUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second, logger.Discard()).Deploy(context.Background(), Upload{Subdomain: "x", Filename: "a"})
	assert.True(t, errors.Is(err, domain.ErrNetwork))
}

func TestDeployRejectsNonJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, logger.Discard()).Deploy(context.Background(), Upload{Subdomain: "x", Filename: "a"})
	_, ok := domain.AsProviderError(err)
	assert.True(t, ok)
}
