// Package mailer sends out-of-band mail (one-time reset codes) over SMTP
// with implicit TLS.  It is the delivery boundary of the password reset
// flow: callers treat any error as "nothing was delivered" and must not
// persist state that depends on the mail having arrived.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// Mailer holds the SMTP endpoint and sender credentials.
type Mailer struct {
	host     string
	port     string
	account  string
	password string
}

// New builds a Mailer.  An empty host yields a mailer whose sends always
// fail with a configuration error, which keeps local development without
// an SMTP account bootable.
func New(host, port, account, password string) *Mailer {
	return &Mailer{host: host, port: port, account: account, password: password}
}

// Send delivers one message.  The context deadline bounds the TLS dial;
// the connection additionally carries an overall I/O deadline so a stalled
// server cannot hold a request handler hostage.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if m.host == "" {
		return fmt.Errorf("mailer: smtp host not configured")
	}

	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(m.host, m.port))
	if err != nil {
		return fmt.Errorf("mailer: dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(15 * time.Second))
	}

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mailer: handshake: %w", err)
	}
	defer client.Close()

	if err := client.Auth(smtp.PlainAuth("", m.account, m.password, m.host)); err != nil {
		return fmt.Errorf("mailer: auth: %w", err)
	}
	if err := client.Mail(m.account); err != nil {
		return fmt.Errorf("mailer: mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("mailer: rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mailer: data: %w", err)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.account, to, subject, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("mailer: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailer: close data: %w", err)
	}
	return client.Quit()
}
