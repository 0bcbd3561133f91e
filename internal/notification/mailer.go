package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"time"

	"ms-marketplace/internal/config"
	"ms-marketplace/internal/logger"
	"ms-marketplace/internal/models"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Mailer sends the purchase confirmation with one scannable code per ticket.
// Everything here is best-effort by contract: the purchase is already
// committed before this runs and stays valid no matter what happens below.
type Mailer struct {
	Config config.EmailConfig
	Users  UserLookup
	Logger *logger.Logger
}

func NewMailer(cfg config.EmailConfig, users UserLookup, log *logger.Logger) *Mailer {
	return &Mailer{Config: cfg, Users: users, Logger: log}
}

func (m *Mailer) SendPurchaseConfirmation(ctx context.Context, event *models.Event, payment *models.Payment, tickets []models.Ticket) error {
	if !m.Config.Enabled {
		m.Logger.Debug("NOTIFY", "Email disabled, skipping confirmation for "+payment.PaymentID)
		return nil
	}

	user, err := m.Users.GetUserByID(ctx, payment.UserID)
	if err != nil {
		return fmt.Errorf("look up purchaser %s: %w", payment.UserID, err)
	}

	msg, err := m.buildMessage(user, event, payment, tickets)
	if err != nil {
		return fmt.Errorf("build confirmation email: %w", err)
	}

	addr := m.Config.SMTPHost + ":" + m.Config.SMTPPort
	auth := smtp.PlainAuth("", m.Config.SMTPUsername, m.Config.SMTPPassword, m.Config.SMTPHost)
	if err := smtp.SendMail(addr, auth, m.Config.FromAddress, []string{user.Email}, msg); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	m.Logger.Info("NOTIFY", fmt.Sprintf("Confirmation sent to %s for payment %s (%d tickets)",
		user.Email, payment.PaymentID, len(tickets)))
	return nil
}

func (m *Mailer) buildMessage(user *models.User, event *models.Event, payment *models.Payment, tickets []models.Ticket) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", m.Config.FromAddress)
	fmt.Fprintf(&buf, "To: %s\r\n", user.Email)
	fmt.Fprintf(&buf, "Subject: Your tickets for %s\r\n", event.Name)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", writer.Boundary())

	body, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	name := user.Name
	if name == "" {
		name = user.Email
	}
	fmt.Fprintf(body, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(body, "Your purchase is confirmed.\r\n\r\n")
	fmt.Fprintf(body, "Event:    %s\r\n", event.Name)
	fmt.Fprintf(body, "Location: %s\r\n", event.Location)
	fmt.Fprintf(body, "Date:     %s\r\n", event.EventDate.Format(time.RFC1123))
	fmt.Fprintf(body, "Tickets:  %d\r\n", len(tickets))
	fmt.Fprintf(body, "Total:    %.2f (%s)\r\n\r\n", payment.Amount, payment.PaymentMethod)
	fmt.Fprintf(body, "Each attached QR code admits one person. See you there!\r\n")

	for i, ticket := range tickets {
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"image/png"},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=ticket-%d.png", i+1)},
		})
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(ticket.QRCode)
		if _, err := part.Write([]byte(encoded)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
