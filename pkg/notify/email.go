package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"
)

const smtpDialTimeout = 30 * time.Second

// SMTPConfig configures the outbound email transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

// SMTPEmail delivers email via a directly-dialed SMTP connection, opened
// and closed per message rather than pooled.
type SMTPEmail struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPEmail creates an SMTPEmail provider. If cfg.Host is empty the
// provider is disabled and Send logs and returns nil.
func NewSMTPEmail(cfg SMTPConfig, logger *slog.Logger) *SMTPEmail {
	return &SMTPEmail{cfg: cfg, logger: logger}
}

// Channel implements Provider.
func (e *SMTPEmail) Channel() Channel { return ChannelEmail }

// IsEnabled reports whether an SMTP host was configured.
func (e *SMTPEmail) IsEnabled() bool { return e.cfg.Host != "" }

// Send implements Provider. Connections are ephemeral: each call opens
// and closes its own connection, matching the send volume (a handful of
// escalation emails per hour, not a stream).
func (e *SMTPEmail) Send(ctx context.Context, msg Message) error {
	if !e.IsEnabled() {
		e.logger.Debug("smtp email disabled, skipping", "subject", msg.Subject)
		return nil
	}

	addr := net.JoinHostPort(e.cfg.Host, fmt.Sprintf("%d", e.cfg.Port))
	dialTimeout := smtpDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < dialTimeout {
			dialTimeout = remaining
		}
	}
	dialer := &net.Dialer{Timeout: dialTimeout}

	var client *smtp.Client
	var err error

	if !e.cfg.StartTLS {
		tlsCfg := &tls.Config{ServerName: e.cfg.Host}
		conn, dialErr := tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
		if dialErr != nil {
			return fmt.Errorf("dial SMTPS %s: %w", addr, dialErr)
		}
		client, err = smtp.NewClient(conn, e.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create SMTP client on %s: %w", addr, err)
		}
	} else {
		conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return fmt.Errorf("dial SMTP %s: %w", addr, dialErr)
		}
		client, err = smtp.NewClient(conn, e.cfg.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("create SMTP client on %s: %w", addr, err)
		}
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}

	if e.cfg.StartTLS {
		tlsCfg := &tls.Config{ServerName: e.cfg.Host}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("STARTTLS: %w", err)
		}
	}

	if e.cfg.Username != "" && e.cfg.Password != "" {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("AUTH: %w", err)
		}
	}

	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(msg.Recipient); err != nil {
		return fmt.Errorf("RCPT TO %s: %w", msg.Recipient, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	body := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		msg.Recipient, e.cfg.From, msg.Subject, msg.Body)
	if _, err := w.Write([]byte(body)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close DATA: %w", err)
	}

	return client.Quit()
}
