package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridMailer struct {
	apiKey   string
	from     string
	fromName string
}

func NewSendGridMailer(apiKey string, from string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, from: from, fromName: "ShopLedger Reports"}
}

func (m *SendGridMailer) Send(_ context.Context, msg Message) (string, error) {
	if m.apiKey == "" {
		return "", fmt.Errorf("sendgrid api key is empty")
	}
	if m.from == "" {
		return "", fmt.Errorf("from address is empty")
	}
	if msg.To == "" {
		return "", fmt.Errorf("to address is empty")
	}

	fromEmail := mail.NewEmail(m.fromName, m.from)
	toEmail := mail.NewEmail("", msg.To)

	plainTextContent := msg.Text
	htmlContent := fmt.Sprintf("<pre>%s</pre>", msg.Text)

	message := mail.NewSingleEmail(fromEmail, msg.Subject, toEmail, plainTextContent, htmlContent)
	for _, att := range msg.Attachments {
		attachment := mail.NewAttachment()
		attachment.SetFilename(att.Filename)
		attachment.SetType(att.ContentType)
		attachment.SetContent(base64.StdEncoding.EncodeToString(att.Data))
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	client := sendgrid.NewSendClient(m.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return "", fmt.Errorf("sendgrid send error: %w", err)
	}

	if response.StatusCode >= 400 {
		log.Printf("[sendgrid] error status=%d, body=%s", response.StatusCode, response.Body)
		return "", fmt.Errorf("sendgrid send failed: status=%d", response.StatusCode)
	}

	messageID := ""
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		messageID = ids[0]
	}

	log.Printf("[sendgrid] mail sent: status=%d to=%s subject=%s", response.StatusCode, msg.To, msg.Subject)
	return messageID, nil
}
