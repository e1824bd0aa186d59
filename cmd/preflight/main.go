// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/scholarwatch/internal/config"
	"github.com/hamed0406/scholarwatch/internal/sites"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "; ") {
			fmt.Fprintln(os.Stderr, "✖", line)
		}
		os.Exit(1)
	}

	reg, err := sites.LoadFile(cfg.SitesFile)
	if err != nil {
		fail("SITES_FILE: " + err.Error())
	}
	for _, s := range reg.All() {
		ok(fmt.Sprintf("site %s -> %s (%s)", s.ID, s.Domain, s.DisplayName))
	}

	ok(fmt.Sprintf("relay %s:%d as %s", cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail))
	ok(fmt.Sprintf("%d recipient(s)", len(cfg.Recipients)))
	ok("backend=" + cfg.SearchBackend + " policy=" + cfg.ScanPolicy)

	if cfg.SMTPPort != 465 {
		warn("SMTP_PORT is not 465; the mailer always uses implicit TLS.")
	}
	if cfg.SearchBackend == config.BackendScholar && cfg.ScholarProxyURL == "" {
		warn("SCHOLAR_PROXY_URL empty; Google Scholar may block direct requests.")
	}
	if cfg.CheckInterval == 0 {
		warn("CHECK_INTERVAL is 0; checks run only on request.")
	} else {
		ok("CHECK_INTERVAL=" + cfg.CheckInterval.String())
	}
	if strings.Join(cfg.AllowedOrigins, ",") == "*" {
		warn("ALLOWED_ORIGINS is *; any origin may call the API from a browser.")
	}

	ok("preflight passed")
}
