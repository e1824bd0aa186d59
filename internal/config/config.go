package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	BackendScholar       = "scholar"
	BackendElasticsearch = "elasticsearch"
)

type Config struct {
	Addr      string // API bind address, e.g. "127.0.0.1:8080" or ":8080" in Docker
	LogDir    string
	LogLevel  string
	SitesFile string // optional YAML registry; empty means the built-in default

	// Search
	SearchBackend    string
	ScanPolicy       string // "eager" or "first"
	MaxSamples       int
	DrawDelay        time.Duration
	ScholarBaseURL   string
	ScholarProxyURL  string
	ScholarUserAgent string
	HTTPTimeout      time.Duration
	ESAddrs          []string
	ESIndex          string
	ESDomainField    string
	ESUsername       string
	ESPassword       string

	// Mail
	SenderEmail       string
	SenderPass        string
	Recipients        []string
	SMTPHost          string
	SMTPPort          int
	MailMaxConns      int
	MailRetryAttempts int
	MailRetryBackoff  time.Duration
	SMTPTimeout       time.Duration
	SlackWebhooks     []string

	// Scheduler
	CheckInterval       time.Duration // 0 disables background checks
	MaxConcurrentChecks int

	// HTTP shell
	Username       string
	Password       string
	RPM            int
	Burst          int
	AllowedOrigins []string
}

func FromEnv() Config {
	addr := getEnv("API_ADDR", "")
	if addr == "" {
		if port := getEnv("PORT", ""); port != "" {
			addr = ":" + port
		} else {
			addr = "127.0.0.1:8080"
		}
	}

	// EMAIL1/EMAIL2 are the two fixed recipients; EMAIL_RECIPIENTS adds more.
	var recipients []string
	for _, key := range []string{"EMAIL1", "EMAIL2"} {
		if v := getEnv(key, ""); v != "" {
			recipients = append(recipients, v)
		}
	}
	recipients = appendUnique(recipients, splitAndTrim(getEnv("EMAIL_RECIPIENTS", ""))...)

	return Config{
		Addr:      addr,
		LogDir:    getEnv("LOG_DIR", "logs"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		SitesFile: getEnv("SITES_FILE", ""),

		SearchBackend:    strings.ToLower(getEnv("SEARCH_BACKEND", BackendScholar)),
		ScanPolicy:       strings.ToLower(getEnv("SCAN_POLICY", "eager")),
		MaxSamples:       getInt("MAX_SAMPLES", 5),
		DrawDelay:        getDuration("DRAW_DELAY", time.Second),
		ScholarBaseURL:   getEnv("SCHOLAR_BASE_URL", ""),
		ScholarProxyURL:  getEnv("SCHOLAR_PROXY_URL", ""),
		ScholarUserAgent: getEnv("SCHOLAR_USER_AGENT", ""),
		HTTPTimeout:      time.Duration(getInt("HTTP_TIMEOUT_MS", 15000)) * time.Millisecond,
		ESAddrs:          splitAndTrim(getEnv("ELASTICSEARCH_ADDR", "")),
		ESIndex:          getEnv("ELASTICSEARCH_INDEX", "publications"),
		ESDomainField:    getEnv("ELASTICSEARCH_DOMAIN_FIELD", "domain"),
		ESUsername:       getEnv("ELASTICSEARCH_USERNAME", ""),
		ESPassword:       getEnv("ELASTICSEARCH_PASSWORD", ""),

		SenderEmail:       getEnv("SENDER_EMAIL", ""),
		SenderPass:        getEnv("SENDER_PASS", ""),
		Recipients:        recipients,
		SMTPHost:          getEnv("SMTP_HOST", "tobitresearchconsulting.com"),
		SMTPPort:          getInt("SMTP_PORT", 465),
		MailMaxConns:      getInt("MAIL_MAX_CONNS", 4),
		MailRetryAttempts: getInt("MAIL_RETRY_ATTEMPTS", 1),
		MailRetryBackoff:  getDuration("MAIL_RETRY_BACKOFF", 2*time.Second),
		SMTPTimeout:       getDuration("SMTP_TIMEOUT", 30*time.Second),
		SlackWebhooks:     splitAndTrim(getEnv("SLACK_WEBHOOK_URL", "")),

		CheckInterval:       getDuration("CHECK_INTERVAL", 0),
		MaxConcurrentChecks: getInt("MAX_CONCURRENT_CHECKS", 2),

		Username:       getEnv("USERNAME", ""),
		Password:       getEnv("PASSWORD", ""),
		RPM:            getInt("RATE_RPM", 30),
		Burst:          getInt("RATE_BURST", 10),
		AllowedOrigins: splitAndTrim(getEnv("ALLOWED_ORIGINS", "*")),
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs error
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s is required", name))
		}
	}
	need("SENDER_EMAIL", c.SenderEmail)
	need("SENDER_PASS", c.SenderPass)
	need("USERNAME", c.Username)
	need("PASSWORD", c.Password)
	if len(c.Recipients) == 0 {
		errs = multierr.Append(errs, errors.New("EMAIL1, EMAIL2 or EMAIL_RECIPIENTS must name at least one recipient"))
	}

	switch c.SearchBackend {
	case BackendScholar:
	case BackendElasticsearch:
		if len(c.ESAddrs) == 0 {
			errs = multierr.Append(errs, errors.New("ELASTICSEARCH_ADDR is required for the elasticsearch backend"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("SEARCH_BACKEND %q is not one of scholar, elasticsearch", c.SearchBackend))
	}
	if c.ScanPolicy != "eager" && c.ScanPolicy != "first" {
		errs = multierr.Append(errs, fmt.Errorf("SCAN_POLICY %q is not one of eager, first", c.ScanPolicy))
	}
	if c.MaxSamples < 1 {
		errs = multierr.Append(errs, errors.New("MAX_SAMPLES must be positive"))
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("SMTP_PORT %d out of range", c.SMTPPort))
	}
	if c.MailRetryAttempts < 1 {
		errs = multierr.Append(errs, errors.New("MAIL_RETRY_ATTEMPTS must be at least 1"))
	}
	if c.CheckInterval < 0 {
		errs = multierr.Append(errs, errors.New("CHECK_INTERVAL cannot be negative"))
	}
	return errs
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getDuration accepts Go durations ("1s", "15m") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	return fallback
}

func splitAndTrim(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(list []string, more ...string) []string {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		seen[strings.ToLower(v)] = true
	}
	for _, v := range more {
		if !seen[strings.ToLower(v)] {
			seen[strings.ToLower(v)] = true
			list = append(list, v)
		}
	}
	return list
}
