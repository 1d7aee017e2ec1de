// Package alert sends trade notification emails over SMTP.
package alert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"mtbridge/internal/domain"
)

// defaultTimeout bounds the whole SMTP conversation. smtp.SendMail has no
// deadline of its own; a server that accepts the connection and never greets
// would otherwise hang the sender forever.
const defaultTimeout = 10 * time.Second

// Mailer sends plain-text notifications. A Mailer with an empty sender is
// disabled: Send calls become no-ops so callers never have to branch.
type Mailer struct {
	host     string
	port     int
	sender   string
	password string
	receiver string
	timeout  time.Duration
	log      *slog.Logger

	// send is swapped out in tests. When nil, delivery dials with a
	// deadline via sendWithDeadline.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a Mailer. Pass an empty sender to disable email delivery.
func New(host string, port int, sender, password, receiver string, log *slog.Logger) *Mailer {
	return &Mailer{
		host:     host,
		port:     port,
		sender:   sender,
		password: password,
		receiver: receiver,
		timeout:  defaultTimeout,
		log:      log,
	}
}

// Enabled reports whether the mailer will actually deliver mail.
func (m *Mailer) Enabled() bool {
	return m.sender != "" && m.receiver != ""
}

// Send delivers a notification with the given subject and body. Disabled
// mailers return nil without connecting anywhere.
func (m *Mailer) Send(subject, body string) error {
	if !m.Enabled() {
		return nil
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", m.receiver)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.sender, m.password, m.host)

	send := m.send
	if send == nil {
		send = m.sendWithDeadline
	}
	if err := send(addr, auth, m.sender, []string{m.receiver}, []byte(msg.String())); err != nil {
		return fmt.Errorf("sending alert mail: %w", err)
	}
	return nil
}

// sendWithDeadline is smtp.SendMail with the conversation bounded by
// m.timeout, covering the dial and every subsequent read and write.
func (m *Mailer) sendWithDeadline(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, m.timeout)
	if err != nil {
		return err
	}
	conn.SetDeadline(time.Now().Add(m.timeout))

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// NotifyOutcome formats and sends a notification for a processed signal.
// Delivery failures are logged, never propagated: alerting must not affect
// trade handling.
func (m *Mailer) NotifyOutcome(sym, action string, volume float64, outcome domain.ExecutionOutcome) {
	if !m.Enabled() {
		return
	}

	subject := fmt.Sprintf("[mtbridge] %s %s %s", strings.ToUpper(action), sym, outcome.State)
	var body strings.Builder
	fmt.Fprintf(&body, "Signal: %s %s volume %v\n", action, sym, volume)
	fmt.Fprintf(&body, "State: %s\n", outcome.State)
	if outcome.Ticket != 0 {
		fmt.Fprintf(&body, "Ticket: %d\n", outcome.Ticket)
	}
	if outcome.Retcode != 0 {
		fmt.Fprintf(&body, "Retcode: %d\n", outcome.Retcode)
	}
	if outcome.Message != "" {
		fmt.Fprintf(&body, "Message: %s\n", outcome.Message)
	}
	for _, r := range outcome.Results {
		fmt.Fprintf(&body, "Close ticket %d: success=%v %s\n", r.Ticket, r.Success, r.Message)
	}

	if err := m.Send(subject, body.String()); err != nil {
		m.log.Error("sending trade alert", "symbol", sym, "error", err)
	}
}
