// Package esindex serves publication lookups from an Elasticsearch index
// whose documents carry the publisher hostname in a keyword field.
package esindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

var (
	ErrUnsupportedQuery = errors.New("esindex: only site: queries are supported")
	ErrRateLimited      = errors.New("esindex: rate limited")
	ErrSearchFailed     = errors.New("esindex: search failed")
)

type Config struct {
	Addresses   []string
	Index       string
	DomainField string
	Username    string
	Password    string
	PageSize    int
	MaxPages    int
}

type Client struct {
	Logger   *zap.Logger
	es       *elasticsearch.Client
	index    string
	field    string
	pageSize int
	maxPages int
}

func New(logger *zap.Logger, cfg Config) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("esindex: no addresses configured")
	}
	if cfg.Index == "" {
		cfg.Index = "publications"
	}
	if cfg.DomainField == "" {
		cfg.DomainField = "domain"
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 5
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{
		Logger:   logger,
		es:       es,
		index:    cfg.Index,
		field:    cfg.DomainField,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}, nil
}

// SiteHost extracts the hostname from a "site:host" query.
func SiteHost(query string) (string, error) {
	q := strings.TrimSpace(query)
	if !strings.HasPrefix(q, "site:") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedQuery, query)
	}
	host := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(q, "site:")))
	if host == "" || strings.ContainsAny(host, " /") {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedQuery, query)
	}
	return host, nil
}

func (c *Client) Search(ctx context.Context, query string) iter.Seq2[domain.Publication, error] {
	return func(yield func(domain.Publication, error) bool) {
		host, err := SiteHost(query)
		if err != nil {
			yield(nil, err)
			return
		}
		for page := 0; page < c.maxPages; page++ {
			pubs, err := c.fetchPage(ctx, host, page*c.pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, p := range pubs {
				if !yield(p, nil) {
					return
				}
			}
			if len(pubs) < c.pageSize {
				return
			}
		}
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) fetchPage(ctx context.Context, host string, from int) ([]domain.Publication, error) {
	body := map[string]any{
		"from": from,
		"size": c.pageSize,
		"sort": []string{"_doc"},
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"term": map[string]any{c.field: host}},
				},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search publications: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: %s: %s", ErrSearchFailed, res.Status(), strings.TrimSpace(string(raw)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Publication, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, domain.Publication(h.Source))
	}
	c.Logger.Debug("esindex_page",
		zap.String("host", host),
		zap.Int("from", from),
		zap.Int("hits", len(out)),
	)
	return out, nil
}
