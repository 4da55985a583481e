package notifier

import (
	"context"
	"fmt"
	"time"

	"coingecko_etl/config"
	"coingecko_etl/exception"
	"coingecko_etl/models"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

const implicitTLSPort = 465

// Sender delivers one notification message
type Sender interface {
	Send(ctx context.Context, msg models.NotificationMessage) error
}

// SMTPSender submits each message in its own authenticated TLS session
type SMTPSender struct {
	cfg    config.MailConfig
	logger *zap.Logger

	// implicitTLS opens the session inside TLS instead of upgrading it with
	// STARTTLS
	implicitTLS bool
}

// NewSMTPSender requires the full credential pair; logging in with only a
// password is rejected up front.
func NewSMTPSender(cfg config.MailConfig, logger *zap.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("%w: mail host and port are required", exception.ErrConfig)
	}
	if cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: mail username and password are required", exception.ErrConfig)
	}
	if cfg.Destination == "" {
		return nil, fmt.Errorf("%w: mail destination is required", exception.ErrConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &SMTPSender{cfg: cfg, logger: logger, implicitTLS: cfg.Port == implicitTLSPort}, nil
}

// Send builds a plain-text message and submits it. The session is opened and
// closed inside the call.
func (s *SMTPSender) Send(ctx context.Context, msg models.NotificationMessage) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to submit %q via %s:%d: %w", msg.Subject, s.cfg.Host, s.cfg.Port, err)
	}

	s.logger.Debug("notification sent",
		zap.String("kind", string(msg.Kind)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (s *SMTPSender) buildMessage(msg models.NotificationMessage) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.cfg.User); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", s.cfg.User, err)
	}
	if err := m.To(s.cfg.Destination); err != nil {
		return nil, fmt.Errorf("invalid destination address %q: %w", s.cfg.Destination, err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.User),
		mail.WithPassword(s.cfg.Password),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.implicitTLS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	return opts
}
