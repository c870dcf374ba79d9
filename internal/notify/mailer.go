package notify

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPConfig holds mail delivery settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Configured reports whether enough is set to attempt delivery.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != "" && c.To != ""
}

// Mailer sends notification emails over SMTP with STARTTLS.
type Mailer struct {
	cfg SMTPConfig
}

func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send delivers one multipart/alternative message with plain-text and HTML
// bodies.
func (m *Mailer) Send(subject, textBody, htmlBody string) error {
	if !m.cfg.Configured() {
		return fmt.Errorf("smtp not configured")
	}

	msg, err := buildMessage(m.cfg.From, m.cfg.To, subject, textBody, htmlBody)
	if err != nil {
		return fmt.Errorf("building message: %w", err)
	}

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{m.cfg.To}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("sending mail via %s: %w", addr, err)
	}
	return nil
}

// SendTest delivers a short probe message so operators can verify settings.
func (m *Mailer) SendTest() error {
	text := "This is a test notification. If you can read this, SMTP delivery works."
	html := "<p>This is a test notification. If you can read this, SMTP delivery works.</p>"
	return m.Send("statuswatch test notification", text, html)
}

func buildMessage(from, to, subject, textBody, htmlBody string) ([]byte, error) {
	var buf bytes.Buffer
	alt := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", alt.Boundary())

	for _, part := range []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", textBody},
		{"text/html; charset=utf-8", htmlBody},
	} {
		w, err := alt.CreatePart(map[string][]string{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(w)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		qp.Close()
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
