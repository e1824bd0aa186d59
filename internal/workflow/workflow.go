// Package workflow ties a presence check to its notification and renders the
// status line returned to callers.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/scholarwatch/internal/domain"
	"github.com/hamed0406/scholarwatch/internal/metrics"
	"github.com/hamed0406/scholarwatch/internal/notify"
	"github.com/hamed0406/scholarwatch/internal/probe"
)

type Checker interface {
	Check(ctx context.Context, site domain.Site) probe.Outcome
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg domain.Message) domain.DispatchResult
}

type Registry interface {
	All() []domain.Site
	Lookup(id string) (domain.Site, error)
}

type Workflow struct {
	Logger     *zap.Logger
	Sites      Registry
	Checker    Checker
	Dispatcher Dispatcher
	Recipients []string
	// Mirror gets a best-effort copy of every message. Its failures are
	// logged and never change the status line.
	Mirror  notify.Notifier
	Metrics *metrics.Recorder
	Now     func() time.Time
	NewID   func() string
}

func New(logger *zap.Logger, reg Registry, checker Checker, dispatcher Dispatcher, recipients []string) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		Logger:     logger,
		Sites:      reg,
		Checker:    checker,
		Dispatcher: dispatcher,
		Recipients: recipients,
		Now:        time.Now,
		NewID:      uuid.NewString,
	}
}

// Invoke checks the registered site and returns its status line. The only
// error is an unknown site ID.
func (w *Workflow) Invoke(ctx context.Context, siteID string) (string, error) {
	site, err := w.Sites.Lookup(siteID)
	if err != nil {
		return "", err
	}
	return w.Run(ctx, site).StatusLine, nil
}

// Run performs one check and always sends one notification. Once started it
// runs to completion: cancelling ctx does not cut the check or the send short.
func (w *Workflow) Run(ctx context.Context, site domain.Site) domain.CheckResult {
	ctx = context.WithoutCancel(ctx)
	start := w.now()
	runID := w.newID()
	log := w.Logger.With(zap.String("run_id", runID), zap.String("site", string(site.ID)))

	outcome := w.Checker.Check(ctx, site)
	verdict := outcome.Verdict()

	msg := BuildMessage(site, verdict, start, w.Recipients)
	dispatch := w.Dispatcher.Dispatch(ctx, msg)
	w.mirror(ctx, log, msg)

	res := domain.CheckResult{
		RunID:      runID,
		Site:       site,
		Verdict:    verdict,
		Dispatch:   dispatch,
		SearchErr:  outcome.Err,
		StatusLine: StatusLine(site, verdict, dispatch.Delivered),
		CheckedAt:  start.UTC(),
	}

	took := w.now().Sub(start)
	w.Metrics.ObserveCheck(string(site.ID), outcome.Kind.String(), took)
	w.Metrics.ObserveDispatch(string(site.ID), dispatch.Delivered)

	log.Info("check_done",
		zap.String("outcome", outcome.Kind.String()),
		zap.Bool("found", verdict.Found),
		zap.Int("samples", verdict.SampleCount),
		zap.Bool("delivered", dispatch.Delivered),
		zap.Int("attempts", dispatch.Attempts),
		zap.Duration("took", took),
		zap.String("status", res.StatusLine),
	)
	return res
}

// RunAll checks every registered site with at most limit checks in flight.
// Results keep registry order.
func (w *Workflow) RunAll(ctx context.Context, limit int) []domain.CheckResult {
	all := w.Sites.All()
	out := make([]domain.CheckResult, len(all))
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, site := range all {
		g.Go(func() error {
			out[i] = w.Run(ctx, site)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (w *Workflow) mirror(ctx context.Context, log *zap.Logger, msg domain.Message) {
	if w.Mirror == nil {
		return
	}
	if err := w.Mirror.Send(ctx, msg); err != nil {
		log.Warn("mirror_failed", zap.Error(err))
	}
}

func (w *Workflow) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

func (w *Workflow) newID() string {
	if w.NewID == nil {
		return uuid.NewString()
	}
	return w.NewID()
}

// BuildMessage renders the notification for a verdict. Output depends only
// on its arguments.
func BuildMessage(site domain.Site, v domain.Verdict, at time.Time, recipients []string) domain.Message {
	stamp := at.UTC().Format(time.RFC3339)
	var b strings.Builder

	if v.Found {
		fmt.Fprintf(&b, "Journals or Articles from %s have been found on Google Scholar.\n\n", site.Domain)
		fmt.Fprintf(&b, "Sample size: %d publications\n", v.SampleCount)
		fmt.Fprintf(&b, "Checked at: %s\n", stamp)
		fmt.Fprintf(&b, "Domain checked: %s\n", site.Domain)
		if titles := sampleTitles(v.Evidence); len(titles) > 0 {
			b.WriteString("\nSample:\n")
			for _, t := range titles {
				fmt.Fprintf(&b, "- %s\n", t)
			}
		}
		return domain.Message{
			Subject:    site.DisplayName + " Google Scholar Found",
			Body:       b.String(),
			Recipients: recipients,
		}
	}

	fmt.Fprintf(&b, "Publications for %s Not Found on Google Scholar.\n\n", site.DisplayName)
	fmt.Fprintf(&b, "Checked at: %s\n", stamp)
	fmt.Fprintf(&b, "Domain checked: %s\n", site.Domain)
	return domain.Message{
		Subject:    site.DisplayName + " Google Scholar Not Found",
		Body:       b.String(),
		Recipients: recipients,
	}
}

func sampleTitles(evidence []domain.Publication) []string {
	var out []string
	for _, p := range evidence {
		if t := strings.TrimSpace(p.Title()); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// StatusLine is the text returned to the caller for one run.
func StatusLine(site domain.Site, v domain.Verdict, delivered bool) string {
	send := "Email notification failed to send"
	if delivered {
		send = "Email notification sent successfully"
	}
	if v.Found {
		return fmt.Sprintf("✓ %s: Content found on Google Scholar (%d publications) - %s",
			site.DisplayName, v.SampleCount, send)
	}
	return fmt.Sprintf("✗ %s: No content found on Google Scholar - %s", site.DisplayName, send)
}
