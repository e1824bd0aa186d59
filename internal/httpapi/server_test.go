package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hamed0406/scholarwatch/internal/domain"
	"github.com/hamed0406/scholarwatch/internal/sites"
)

// ---- test helpers ----

type fakeChecks struct {
	mu    sync.Mutex
	calls []string
	line  string
}

func (f *fakeChecks) Invoke(_ context.Context, siteID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if siteID != "stratford" {
		return "", fmt.Errorf("%w: %q", sites.ErrUnknownSite, siteID)
	}
	f.calls = append(f.calls, siteID)
	return f.line, nil
}

func (f *fakeChecks) RunAll(context.Context, int) []domain.CheckResult {
	return []domain.CheckResult{
		{StatusLine: "line one"},
		{StatusLine: "line two"},
	}
}

const failedLine = "✗ Stratford Journals: No content found on Google Scholar - Email notification failed to send"

func setupServer(t *testing.T) (*httptest.Server, *fakeChecks) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	checks := &fakeChecks{line: failedLine}
	srv := NewServer(nil, checks, sites.Default(), Options{
		Username:     "admin",
		PasswordHash: hash,
		RPM:          600,
		Burst:        100,
		Metrics:      promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, checks
}

func get(t *testing.T, url string, auth bool) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if auth {
		req.SetBasicAuth("admin", "hunter2")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// ---- tests ----

func TestRoot_InvokesDefaultSite(t *testing.T) {
	ts, checks := setupServer(t)

	resp, body := get(t, ts.URL+"/", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	require.Equal(t, failedLine+"\n", body)
	require.Equal(t, []string{"stratford"}, checks.calls)
}

func TestCheck_BySiteID(t *testing.T) {
	ts, checks := setupServer(t)

	resp, _ := get(t, ts.URL+"/check/stratford", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/check/stratford", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, checks.calls, 2)

	resp, _ = get(t, ts.URL+"/check/unknown", true)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckAll_OneLinePerSite(t *testing.T) {
	ts, _ := setupServer(t)

	resp, body := get(t, ts.URL+"/check", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "line one\nline two\n", body)
}

func TestSites_ListsRegistry(t *testing.T) {
	ts, _ := setupServer(t)

	resp, body := get(t, ts.URL+"/sites", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []domain.Site
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Equal(t, []domain.Site{sites.Stratford}, got)
}

func TestAuth_RequiredExceptHealthAndMetrics(t *testing.T) {
	ts, checks := setupServer(t)

	for _, path := range []string{"/", "/check", "/check/stratford", "/sites"} {
		resp, _ := get(t, ts.URL+path, false)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		require.NotEmpty(t, resp.Header.Get("WWW-Authenticate"), path)
	}
	require.Empty(t, checks.calls)

	resp, body := get(t, ts.URL+"/healthz", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body)

	resp, _ = get(t, ts.URL+"/metrics", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
