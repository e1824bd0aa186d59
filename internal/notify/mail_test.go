package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

// ---- fakes ----

type fakeSession struct {
	authErr    error
	deliverErr error

	user, pass string
	from       string
	to         []string
	raw        []byte
	closed     int
}

func (s *fakeSession) Auth(u, p string) error {
	s.user, s.pass = u, p
	return s.authErr
}

func (s *fakeSession) Deliver(from string, to []string, msg []byte) error {
	if s.deliverErr != nil {
		return s.deliverErr
	}
	s.from, s.to, s.raw = from, to, msg
	return nil
}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	dialErr  error
	session  *fakeSession
	host     string
	port     int
	dials    int
	inFlight int
	maxSeen  int
	hold     time.Duration
}

func (d *fakeDialer) Dial(_ context.Context, host string, port int) (Session, error) {
	d.mu.Lock()
	d.dials++
	d.host, d.port = host, port
	d.inFlight++
	if d.inFlight > d.maxSeen {
		d.maxSeen = d.inFlight
	}
	d.mu.Unlock()

	if d.hold > 0 {
		time.Sleep(d.hold)
	}
	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()

	if d.dialErr != nil {
		return nil, d.dialErr
	}
	if d.session == nil {
		return &fakeSession{}, nil
	}
	return d.session, nil
}

func testMessage() domain.Message {
	return domain.Message{
		Subject:    "Stratford Journals Google Scholar Found",
		Body:       "Journals or Articles from stratfordjournalpublishers.org have been found on Google Scholar.",
		Recipients: []string{"a@example.com", "b@example.com"},
	}
}

func newTestMailer(d Dialer) *Mailer {
	m := NewMailer(nil, d, MailerConfig{
		From:        "alerts@example.com",
		Credentials: Credentials{Username: "alerts@example.com", Password: "s3cret"},
	})
	m.now = func() time.Time { return time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC) }
	m.newID = func() string { return "fixed-id" }
	return m
}

// ---- tests ----

func TestMailer_DeliversToAllRecipientsInOneSession(t *testing.T) {
	sess := &fakeSession{}
	d := &fakeDialer{session: sess}
	m := newTestMailer(d)

	if err := m.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if d.dials != 1 {
		t.Fatalf("want one connection, got %d", d.dials)
	}
	if d.host != DefaultRelayHost || d.port != DefaultRelayPort {
		t.Fatalf("unexpected relay %s:%d", d.host, d.port)
	}
	if sess.user != "alerts@example.com" || sess.pass != "s3cret" {
		t.Fatalf("credentials not passed through: %q/%q", sess.user, sess.pass)
	}
	if len(sess.to) != 2 || sess.to[0] != "a@example.com" || sess.to[1] != "b@example.com" {
		t.Fatalf("unexpected recipients: %v", sess.to)
	}
	if sess.closed != 1 {
		t.Fatalf("session must be closed once, got %d", sess.closed)
	}
	raw := string(sess.raw)
	for _, want := range []string{
		"From: alerts@example.com\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Stratford Journals Google Scholar Found\r\n",
		"Message-ID: <fixed-id@example.com>\r\n",
		"Date: Mon, 18 Aug 2025 12:00:00 +0000\r\n",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("missing %q in message:\n%s", want, raw)
		}
	}
}

func TestMailer_ClosesSessionOnEveryFailure(t *testing.T) {
	boom := errors.New("535 authentication failed")
	cases := []struct {
		name string
		sess *fakeSession
	}{
		{"auth rejected", &fakeSession{authErr: boom}},
		{"delivery rejected", &fakeSession{deliverErr: boom}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := newTestMailer(&fakeDialer{session: c.sess})
			err := m.Send(context.Background(), testMessage())
			if !errors.Is(err, boom) {
				t.Fatalf("want %v, got %v", boom, err)
			}
			if c.sess.closed != 1 {
				t.Fatalf("session must be closed on failure, got %d", c.sess.closed)
			}
		})
	}
}

func TestMailer_DialFailure(t *testing.T) {
	boom := errors.New("connection refused")
	m := newTestMailer(&fakeDialer{dialErr: boom})
	if err := m.Send(context.Background(), testMessage()); !errors.Is(err, boom) {
		t.Fatalf("want dial error, got %v", err)
	}
}

func TestMailer_NoRecipients(t *testing.T) {
	d := &fakeDialer{}
	m := newTestMailer(d)
	msg := testMessage()
	msg.Recipients = nil
	if err := m.Send(context.Background(), msg); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("want ErrNoRecipients, got %v", err)
	}
	if d.dials != 0 {
		t.Fatalf("must not connect without recipients")
	}
}

func TestMailer_BoundsRelayConnections(t *testing.T) {
	d := &fakeDialer{hold: 20 * time.Millisecond}
	m := NewMailer(nil, d, MailerConfig{From: "x@example.com", MaxConns: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Send(context.Background(), testMessage())
		}()
	}
	wg.Wait()

	if d.dials != 6 {
		t.Fatalf("want 6 dials, got %d", d.dials)
	}
	if d.maxSeen > 2 {
		t.Fatalf("want at most 2 concurrent connections, saw %d", d.maxSeen)
	}
}

func TestRender_EncodesNonASCIISubject(t *testing.T) {
	raw, err := render("a@b.org", domain.Message{Subject: "Révue Found", Body: "line1\nline2", Recipients: []string{"c@d.org"}}, time.Unix(0, 0).UTC(), "id")
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	if !strings.Contains(s, "Subject: =?utf-8?q?") {
		t.Fatalf("subject should be Q-encoded:\n%s", s)
	}
	if !strings.Contains(s, "line1\r\nline2") {
		t.Fatalf("body should use CRLF:\n%s", s)
	}
}
