// Package scholar reads search results from Google Scholar's HTML pages.
package scholar

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

const (
	DefaultBaseURL   = "https://scholar.google.com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	pageSize         = 10
)

var (
	ErrRateLimited      = errors.New("scholar: rate limited")
	ErrBlocked          = errors.New("scholar: blocked by captcha")
	ErrUnexpectedStatus = errors.New("scholar: unexpected status")
	ErrMalformed        = errors.New("scholar: malformed results page")
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// ProxyURL routes requests through a scraping proxy when set.
	ProxyURL string
	// MaxPages stops paging even if the consumer keeps drawing.
	MaxPages int
}

type Client struct {
	Logger    *zap.Logger
	HTTP      *http.Client
	base      *url.URL
	userAgent string
	maxPages  int
}

func New(logger *zap.Logger, cfg Config) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid scholar base url %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 5
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid scholar proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Client{
		Logger:    logger,
		HTTP:      &http.Client{Timeout: cfg.Timeout, Transport: transport},
		base:      base,
		userAgent: cfg.UserAgent,
		maxPages:  cfg.MaxPages,
	}, nil
}

// Search pages through results only as far as the caller draws.
func (c *Client) Search(ctx context.Context, query string) iter.Seq2[domain.Publication, error] {
	return func(yield func(domain.Publication, error) bool) {
		for page := 0; page < c.maxPages; page++ {
			pubs, err := c.fetchPage(ctx, query, page*pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, p := range pubs {
				if !yield(p, nil) {
					return
				}
			}
			if len(pubs) < pageSize {
				return
			}
		}
	}
}

func (c *Client) pageURL(query string, start int) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/scholar"
	q := url.Values{}
	q.Set("q", query)
	q.Set("hl", "en")
	if start > 0 {
		q.Set("start", strconv.Itoa(start))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetchPage(ctx context.Context, query string, start int) ([]domain.Publication, error) {
	target := c.pageURL(query, start)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scholar request: %w", err)
	}
	defer resp.Body.Close()

	c.Logger.Debug("scholar_page",
		zap.String("query", query),
		zap.Int("start", start),
		zap.Int("status", resp.StatusCode),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrBlocked
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	case strings.HasPrefix(resp.Request.URL.Path, "/sorry"):
		return nil, ErrBlocked
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return parseResults(doc)
}

func parseResults(doc *goquery.Document) ([]domain.Publication, error) {
	if doc.Find("#gs_captcha_ccl, #captcha-form, #recaptcha").Length() > 0 {
		return nil, ErrBlocked
	}
	results := doc.Find("#gs_res_ccl_mid, #gs_res_ccl")
	if results.Length() == 0 {
		if strings.Contains(doc.Text(), "unusual traffic") {
			return nil, ErrBlocked
		}
		return nil, ErrMalformed
	}

	var out []domain.Publication
	results.First().Find(".gs_r .gs_ri").Each(func(_ int, s *goquery.Selection) {
		h := s.Find("h3.gs_rt").First()
		link := h.Find("a").First()

		title := strings.TrimSpace(link.Text())
		if title == "" {
			h.Find(".gs_ctc, .gs_ctu").Remove()
			title = strings.TrimSpace(h.Text())
		}
		if title == "" {
			return
		}

		pub := domain.Publication{"title": title}
		if href, ok := link.Attr("href"); ok && href != "" {
			pub["url"] = href
		}
		if by := strings.TrimSpace(s.Find(".gs_a").First().Text()); by != "" {
			pub["byline"] = by
		}
		if snip := strings.TrimSpace(s.Find(".gs_rs").First().Text()); snip != "" {
			pub["snippet"] = snip
		}
		out = append(out, pub)
	})
	return out, nil
}
