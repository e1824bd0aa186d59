package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// Session is one authenticated conversation with the mail relay. Close must
// be safe to call after any failure.
type Session interface {
	Auth(username, password string) error
	Deliver(from string, to []string, msg []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, host string, port int) (Session, error)
}

// TLSDialer connects with implicit TLS (SMTPS, port 465).
type TLSDialer struct {
	Timeout time.Duration
}

func (d TLSDialer) Dial(ctx context.Context, host string, port int) (Session, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	td := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := td.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("TLS dial failed: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(2 * timeout))

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SMTP client failed: %w", err)
	}
	return &smtpSession{client: client, host: host}, nil
}

type smtpSession struct {
	client *smtp.Client
	host   string
	closed bool
}

func (s *smtpSession) Auth(username, password string) error {
	if ok, _ := s.client.Extension("AUTH"); !ok {
		return errors.New("SMTP auth failed: relay does not advertise AUTH")
	}
	if err := s.client.Auth(smtp.PlainAuth("", username, password, s.host)); err != nil {
		return fmt.Errorf("SMTP auth failed: %w", err)
	}
	return nil
}

func (s *smtpSession) Deliver(from string, to []string, msg []byte) error {
	if err := s.client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL failed: %w", err)
	}
	for _, rcpt := range to {
		if err := s.client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT failed: %w", err)
		}
	}
	w, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("SMTP write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP close failed: %w", err)
	}
	return nil
}

// Close sends QUIT and falls back to dropping the connection.
func (s *smtpSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.client.Quit(); err != nil {
		_ = s.client.Close()
		return err
	}
	return nil
}
