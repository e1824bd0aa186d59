package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

// Slack mirrors notifications to an incoming webhook. Recipients are ignored.
type Slack struct {
	Webhook string
	Client  *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// SlackMirrors builds one Slack notifier per webhook, fanned out through
// Multi. It returns nil when no webhook is set.
func SlackMirrors(webhooks []string) Notifier {
	var m Multi
	for _, w := range webhooks {
		if s := NewSlack(strings.TrimSpace(w)); s != nil {
			m = append(m, s)
		}
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

type slackPayload struct {
	Text string `json:"text"`
}

func (s *Slack) Send(ctx context.Context, msg domain.Message) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, err := json.Marshal(slackPayload{Text: "*" + msg.Subject + "*\n" + msg.Body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack non-2xx: %d", resp.StatusCode)
	}
	return nil
}
