package esindex_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/scholarwatch/internal/domain"
	"github.com/hamed0406/scholarwatch/internal/esindex"
)

type searchBody struct {
	From  int `json:"from"`
	Size  int `json:"size"`
	Query struct {
		Bool struct {
			Filter []map[string]map[string]string `json:"filter"`
		} `json:"bool"`
	} `json:"query"`
}

// esStub answers _search with `total` hits for the domain term filter.
func esStub(t *testing.T, total int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		hits.Add(1)

		assert.Equal(t, "/publications/_search", r.URL.Path)
		var body searchBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.Query.Bool.Filter, 1) {
			assert.Equal(t, "stratfordjournalpublishers.org", body.Query.Bool.Filter[0]["term"]["domain"])
		}

		n := total - body.From
		if n > body.Size {
			n = body.Size
		}
		var docs []string
		for i := 0; i < n; i++ {
			docs = append(docs, fmt.Sprintf(`{"_source":{"title":"Paper %d","domain":"stratfordjournalpublishers.org"}}`, body.From+i))
		}
		fmt.Fprintf(w, `{"hits":{"total":{"value":%d},"hits":[%s]}}`, total, strings.Join(docs, ","))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newClient(t *testing.T, addr string) *esindex.Client {
	t.Helper()
	c, err := esindex.New(nil, esindex.Config{Addresses: []string{addr}, PageSize: 2})
	require.NoError(t, err)
	return c
}

func draw(c *esindex.Client, query string, limit int) ([]domain.Publication, error) {
	var out []domain.Publication
	for p, err := range c.Search(context.Background(), query) {
		if err != nil {
			return out, err
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func TestSearch_PagesLazily(t *testing.T) {
	srv, hits := esStub(t, 5)
	c := newClient(t, srv.URL)

	pubs, err := draw(c, "site:stratfordjournalpublishers.org", 3)
	require.NoError(t, err)
	require.Len(t, pubs, 3)
	require.Equal(t, "Paper 0", pubs[0].Title())
	require.EqualValues(t, 2, hits.Load())

	hits.Store(0)
	pubs, err = draw(c, "site:stratfordjournalpublishers.org", 100)
	require.NoError(t, err)
	require.Len(t, pubs, 5)
	require.EqualValues(t, 3, hits.Load())
}

func TestSearch_NoHits(t *testing.T) {
	srv, _ := esStub(t, 0)
	pubs, err := draw(newClient(t, srv.URL), "site:stratfordjournalpublishers.org", 5)
	require.NoError(t, err)
	require.Empty(t, pubs)
}

func TestSearch_ErrorStatus(t *testing.T) {
	for code, want := range map[int]error{
		http.StatusTooManyRequests:     esindex.ErrRateLimited,
		http.StatusInternalServerError: esindex.ErrSearchFailed,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Elastic-Product", "Elasticsearch")
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := draw(newClient(t, srv.URL), "site:stratfordjournalpublishers.org", 5)
		require.ErrorIs(t, err, want, "status %d", code)
		srv.Close()
	}
}

func TestSiteHost(t *testing.T) {
	host, err := esindex.SiteHost("site:StratfordJournalPublishers.org")
	require.NoError(t, err)
	require.Equal(t, "stratfordjournalpublishers.org", host)

	for _, q := range []string{"stratford", "site:", "site:a.org/path", "intitle:x"} {
		_, err := esindex.SiteHost(q)
		require.ErrorIs(t, err, esindex.ErrUnsupportedQuery, q)
	}
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := esindex.New(nil, esindex.Config{})
	require.Error(t, err)
}
