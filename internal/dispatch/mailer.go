package dispatch

import (
	"bytes"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// SMTPMailer sends an Email alarm over SMTP (§4.9). No mail-transport
// library appears anywhere in the retrieval pack, so this is built on
// stdlib net/smtp — the one genuinely justified stdlib choice in this
// package, recorded in DESIGN.md.
type SMTPMailer struct {
	Addr string // host:port of the SMTP relay
	Auth smtp.Auth
}

func (m *SMTPMailer) Send(from string, to, bcc []string, subject, body string, attachments []string) (MailResult, error) {
	msg, err := buildMIMEMessage(from, to, bcc, subject, body, attachments)
	if err != nil {
		return 0, fmt.Errorf("dispatch: build message: %w", err)
	}
	recipients := append(append([]string{}, to...), bcc...)
	if err := smtp.SendMail(m.Addr, m.Auth, from, recipients, msg); err != nil {
		return 0, fmt.Errorf("dispatch: send mail: %w", err)
	}
	return Sent, nil
}

func buildMIMEMessage(from string, to, bcc []string, subject, body string, attachments []string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		fmt.Fprintf(&buf, "Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		buf.WriteString(body)
		return buf.Bytes(), nil
	}

	boundary := "kalarmd-boundary"
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&buf, "--%s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n", boundary, body)
	// TODO: read and base64-encode each attachment's contents; only the
	// filename header is emitted for now.
	for _, path := range attachments {
		fmt.Fprintf(&buf, "--%s\r\nContent-Type: application/octet-stream\r\nContent-Disposition: attachment; filename=%q\r\n\r\n", boundary, path)
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}
