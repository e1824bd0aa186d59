package domain

import (
	"fmt"
	"time"
)

type SiteID string

// Site is one monitored publisher. Domain is a bare hostname, e.g.
// "stratfordjournalpublishers.org".
type Site struct {
	ID          SiteID `json:"id" yaml:"id"`
	Domain      string `json:"domain" yaml:"domain"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Publication is an opaque record from a search index. Only its presence
// matters; "title" is the one key every backend fills.
type Publication map[string]any

func (p Publication) Title() string {
	if p == nil {
		return ""
	}
	switch v := p["title"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Verdict is the boolean presence signal plus a bounded evidence sample.
// Found is always SampleCount > 0.
type Verdict struct {
	Found       bool          `json:"found"`
	SampleCount int           `json:"sample_count"`
	Evidence    []Publication `json:"evidence,omitempty"`
}

func NewVerdict(evidence []Publication) Verdict {
	return Verdict{
		Found:       len(evidence) > 0,
		SampleCount: len(evidence),
		Evidence:    evidence,
	}
}

type Message struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

type DispatchResult struct {
	Delivered bool  `json:"delivered"`
	Attempts  int   `json:"attempts"`
	Err       error `json:"-"`
}

type CheckResult struct {
	RunID      string         `json:"run_id"`
	Site       Site           `json:"site"`
	Verdict    Verdict        `json:"verdict"`
	Dispatch   DispatchResult `json:"dispatch"`
	SearchErr  error          `json:"-"`
	StatusLine string         `json:"status_line"`
	CheckedAt  time.Time      `json:"checked_at"`
}
