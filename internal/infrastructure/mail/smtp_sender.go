// Package mail envía la confirmación de venta por SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	netmail "net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"github.com/jhoicas/gestion-pyme/internal/application/sales"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/pkg/config"
)

var _ sales.NotificationSender = (*SMTPSender)(nil)

// defaultSendTimeout límite de un envío cuando ctx no trae deadline.
const defaultSendTimeout = 10 * time.Second

// SMTPSender envía correos con el comprobante adjunto.
type SMTPSender struct {
	host     string
	user     string
	password string
	from     string
	addr     string
	send     func(e *email.Email, addr string, auth smtp.Auth, deadline time.Time) error
}

// NewSMTPSender construye el sender. Devuelve nil si SMTP no está configurado.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPSender{
		host:     cfg.Host,
		user:     cfg.User,
		password: cfg.Password,
		from:     from,
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		send:     deliver,
	}
}

// Send arma el correo de confirmación y lo envía. El PDF se adjunta si viene.
// La conversación SMTP termina a más tardar en el deadline de ctx.
func (s *SMTPSender) Send(ctx context.Context, recipient string, data sales.ConfirmationData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(recipient) == "" {
		return domain.NewValidation("customer_email", "destinatario vacío")
	}
	e, err := s.build(recipient, data)
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultSendTimeout)
	}
	if err := s.send(e, s.addr, auth, deadline); err != nil {
		return domain.E(domain.KindUnavailable, "mail.Send", err)
	}
	return nil
}

// deliver hace lo mismo que email.Send pero con deadline en el dial y en la conexión.
func deliver(e *email.Email, addr string, auth smtp.Auth, deadline time.Time) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	from, err := netmail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("mail: remitente: %w", err)
	}
	to := make([]string, 0, len(e.To))
	for _, r := range e.To {
		a, err := netmail.ParseAddress(r)
		if err != nil {
			return fmt.Errorf("mail: destinatario: %w", err)
		}
		to = append(to, a.Address)
	}
	raw, err := e.Bytes()
	if err != nil {
		return err
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from.Address); err != nil {
		return err
	}
	for _, r := range to {
		if err := c.Rcpt(r); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPSender) build(recipient string, data sales.ConfirmationData) (*email.Email, error) {
	var html bytes.Buffer
	if err := confirmationTmpl.Execute(&html, data.Receipt); err != nil {
		return nil, fmt.Errorf("mail: plantilla: %w", err)
	}
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{recipient}
	e.Subject = fmt.Sprintf("Confirmación de compra - %s", nonEmpty(data.Receipt.CompanyName, "Su tienda"))
	e.Text = []byte(plainText(data.Receipt))
	e.HTML = html.Bytes()

	if len(data.PDF) > 0 {
		name := "comprobante.pdf"
		if len(data.Receipt.SaleID) >= 8 {
			name = "venta-" + data.Receipt.SaleID[:8] + ".pdf"
		}
		if _, err := e.Attach(bytes.NewReader(data.PDF), name, "application/pdf"); err != nil {
			return nil, fmt.Errorf("mail: adjuntar PDF: %w", err)
		}
	}
	return e, nil
}

func plainText(r sales.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hola %s,\n\nGracias por su compra. Detalle:\n\n", r.CustomerName)
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "- %s x%d: %s\n", l.Name, l.Quantity, l.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", r.Total.StringFixed(2))
	return b.String()
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

var confirmationTmpl = template.Must(template.New("confirmacion").Parse(`<!DOCTYPE html>
<html><body style="font-family: sans-serif">
<h2>Gracias por su compra, {{.CustomerName}}</h2>
<table cellpadding="4" style="border-collapse: collapse">
<tr><th align="left">Producto</th><th>Cant.</th><th align="right">Subtotal</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td align="center">{{.Quantity}}</td><td align="right">{{.Subtotal.StringFixed 2}}</td></tr>
{{end}}</table>
<p><strong>Total: {{.Total.StringFixed 2}}</strong></p>
<p>Adjuntamos el comprobante en PDF.</p>
</body></html>`))
