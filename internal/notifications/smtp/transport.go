package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"contract-backend/internal/notifications"
)

// SendFunc submits one message to the relay at addr and must stop once ctx is done.
// It is swapped out in tests.
type SendFunc func(ctx context.Context, addr string, auth sasl.Client, from string, to []string, r io.Reader) error

// Transport submits mail to an SMTP relay.
type Transport struct {
	addr     string
	username string
	password string
	from     string
	send     SendFunc
	now      func() time.Time
}

// New constructs an SMTP transport. Credentials are optional; PLAIN auth is used when set.
func New(addr, username, password, from string) *Transport {
	return &Transport{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		send:     SendMail,
		now:      time.Now,
	}
}

// WithSendFunc replaces the submission function.
func (t *Transport) WithSendFunc(fn SendFunc) *Transport {
	if fn != nil {
		t.send = fn
	}
	return t
}

// Send composes msg and submits it. The submission is abandoned, connection included,
// when ctx is done.
func (t *Transport) Send(ctx context.Context, msg notifications.Message) error {
	if msg.To == "" {
		return errors.New("smtp: recipient is required")
	}
	raw, err := Compose(t.from, msg, t.now())
	if err != nil {
		return err
	}

	var auth sasl.Client
	if t.username != "" {
		auth = sasl.NewPlainClient("", t.username, t.password)
	}

	if err := t.send(ctx, t.addr, auth, t.from, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	return nil
}

// SendMail dials addr and submits r, upgrading with STARTTLS when the relay offers it.
// The connection is closed as soon as ctx is done, which fails any pending read or
// write; the returned error is then ctx.Err().
func SendMail(ctx context.Context, addr string, auth sasl.Client, from string, to []string, r io.Reader) (err error) {
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = ctx.Err()
		}
	}()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c := gosmtp.NewClient(conn)
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		host, _, _ := net.SplitHostPort(addr)
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.SendMail(from, to, r); err != nil {
		return err
	}
	return c.Quit()
}

// Compose renders msg as a single-part RFC 5322 text message.
func Compose(from string, msg notifications.Message, at time.Time) ([]byte, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("smtp: invalid sender %q: %w", from, err)
	}
	toAddr, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("smtp: invalid recipient %q: %w", msg.To, err)
	}

	var h mail.Header
	h.SetDate(at)
	h.SetAddressList("From", []*mail.Address{fromAddr})
	h.SetAddressList("To", []*mail.Address{toAddr})
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("smtp: message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("smtp: create writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("smtp: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("smtp: close writer: %w", err)
	}
	return buf.Bytes(), nil
}

var _ notifications.Transport = (*Transport)(nil)
