package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/camarohq/hunter/internal/config"
	"github.com/camarohq/hunter/internal/model"
)

// SendFunc delivers one message. The default dials SMTP over implicit TLS.
type SendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier mails the digest as a multipart/alternative message.
type EmailNotifier struct {
	cfg      config.EmailConfig
	composer Composer
	send     SendFunc
}

// NewEmailNotifier creates an EmailNotifier. A nil send uses SendTLS.
func NewEmailNotifier(cfg config.EmailConfig, composer Composer, send SendFunc) *EmailNotifier {
	if cfg.To == "" {
		cfg.To = cfg.From
	}
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if send == nil {
		send = SendTLS
	}
	return &EmailNotifier{cfg: cfg, composer: composer, send: send}
}

// Name implements Notifier.
func (e *EmailNotifier) Name() string { return "email" }

// Configured reports whether credentials are present.
func (e *EmailNotifier) Configured() bool {
	return e.cfg.From != "" && e.cfg.Password != ""
}

// Notify implements Notifier.
func (e *EmailNotifier) Notify(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 || !e.Configured() {
		return nil
	}

	digest, err := e.composer.Compose(listings)
	if err != nil {
		return err
	}
	msg, err := buildMessage(e.cfg.From, e.recipients(), digest)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.From, e.cfg.Password, e.cfg.Host)
	if err := e.send(ctx, addr, auth, e.cfg.From, e.recipients(), msg); err != nil {
		return eris.Wrapf(err, "notify: send email via %s", addr)
	}
	return nil
}

func (e *EmailNotifier) recipients() []string {
	var out []string
	for _, r := range strings.Split(e.cfg.To, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// buildMessage renders headers plus a text and an HTML alternative.
func buildMessage(from string, to []string, d Digest) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", d.Text},
		{"text/html; charset=utf-8", d.HTML},
	}
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", p.contentType)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(h)
		if err != nil {
			return nil, eris.Wrap(err, "notify: create mime part")
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, eris.Wrap(err, "notify: write mime part")
		}
		if err := qp.Close(); err != nil {
			return nil, eris.Wrap(err, "notify: close mime part")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "notify: close multipart")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", d.Subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", d.GeneratedAt.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// SendTimeout bounds one SMTP delivery when the context has no earlier
// deadline.
const SendTimeout = 60 * time.Second

// SendTLS delivers msg over an implicit-TLS SMTP connection (port 465).
func SendTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return eris.Wrap(err, "notify: parse smtp address")
	}
	tlsCfg := &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	return sendTLS(ctx, tlsCfg, SendTimeout, addr, host, auth, from, to, msg)
}

func sendTLS(ctx context.Context, tlsCfg *tls.Config, timeout time.Duration, addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: tlsCfg}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return eris.Wrap(err, "notify: dial smtp")
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close() //nolint:errcheck
		return eris.Wrap(err, "notify: smtp handshake")
	}
	defer c.Close() //nolint:errcheck

	if err := c.Auth(auth); err != nil {
		return eris.Wrap(err, "notify: smtp auth")
	}
	if err := c.Mail(from); err != nil {
		return eris.Wrap(err, "notify: smtp MAIL FROM")
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return eris.Wrapf(err, "notify: smtp RCPT TO %s", rcpt)
		}
	}
	w, err := c.Data()
	if err != nil {
		return eris.Wrap(err, "notify: smtp DATA")
	}
	if _, err := w.Write(msg); err != nil {
		return eris.Wrap(err, "notify: write message")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "notify: finish message")
	}
	return c.Quit()
}
