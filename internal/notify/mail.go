package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hamed0406/scholarwatch/internal/domain"
)

const (
	DefaultRelayHost = "tobitresearchconsulting.com"
	DefaultRelayPort = 465
)

var ErrNoRecipients = errors.New("message has no recipients")

type Credentials struct {
	Username string
	Password string
}

type MailerConfig struct {
	Host        string
	Port        int
	From        string
	Credentials Credentials
	// MaxConns bounds simultaneous relay connections across all checks.
	MaxConns int
}

// Mailer submits messages to an authenticated relay. Every Send opens its
// own session and closes it before returning.
type Mailer struct {
	Logger *zap.Logger
	Dialer Dialer
	cfg    MailerConfig
	slots  *semaphore.Weighted
	now    func() time.Time
	newID  func() string
}

func NewMailer(logger *zap.Logger, dialer Dialer, cfg MailerConfig) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialer == nil {
		dialer = TLSDialer{}
	}
	if cfg.Host == "" {
		cfg.Host = DefaultRelayHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultRelayPort
	}
	if cfg.From == "" {
		cfg.From = cfg.Credentials.Username
	}
	if cfg.MaxConns < 1 {
		cfg.MaxConns = 4
	}
	return &Mailer{
		Logger: logger,
		Dialer: dialer,
		cfg:    cfg,
		slots:  semaphore.NewWeighted(int64(cfg.MaxConns)),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (m *Mailer) Send(ctx context.Context, msg domain.Message) (err error) {
	if len(msg.Recipients) == 0 {
		return ErrNoRecipients
	}
	raw, err := render(m.cfg.From, msg, m.now(), m.newID())
	if err != nil {
		return fmt.Errorf("render message: %w", err)
	}

	if err := m.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for relay slot: %w", err)
	}
	defer m.slots.Release(1)

	sess, err := m.Dialer.Dial(ctx, m.cfg.Host, m.cfg.Port)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			m.Logger.Debug("smtp_close_error", zap.String("host", m.cfg.Host), zap.Error(cerr))
		}
	}()

	if err := sess.Auth(m.cfg.Credentials.Username, m.cfg.Credentials.Password); err != nil {
		return err
	}
	return sess.Deliver(m.cfg.From, msg.Recipients, raw)
}
