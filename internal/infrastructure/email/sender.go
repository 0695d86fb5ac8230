package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/waste3d/training-portal/internal/domain"
)

const sendGridURL = "https://api.sendgrid.com/v3/mail/send"

type EmailSender struct {
	apiKey      string
	senderEmail string
	senderName  string
	frontend    string
	endpoint    string
	client      *http.Client
}

func NewEmailSender(apiKey, senderEmail, frontend string) *EmailSender {
	return &EmailSender{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  "AI Compliance Academy",
		frontend:    frontend,
		endpoint:    sendGridURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// WithEndpoint points the sender at another SendGrid compatible URL.
func (s *EmailSender) WithEndpoint(url string) *EmailSender {
	s.endpoint = url
	return s
}

// SendGrid request format
type sgEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
type sgPersonalization struct {
	To []sgEmail `json:"to"`
}
type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgEmail             `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// SendCertificateEmail tells the learner that a certificate was issued and
// where to view it.
func (s *EmailSender) SendCertificateEmail(ctx context.Context, toEmail string, cert *domain.Certificate) error {
	link := fmt.Sprintf("%s/certificate", s.frontend)
	name := html.EscapeString(cert.Data.UserName)

	body := sgRequest{
		Personalizations: []sgPersonalization{
			{To: []sgEmail{{Email: toEmail, Name: cert.Data.UserName}}},
		},
		From: sgEmail{
			Email: s.senderEmail,
			Name:  s.senderName,
		},
		Subject: "Your AI Compliance certificate is ready",
		Content: []sgContent{
			{
				Type: "text/html",
				Value: fmt.Sprintf(`
				<html>
				<body style="font-family: Arial, sans-serif; color: #1b263b;">
					<h3>Congratulations, %s!</h3>
					<p>You completed %d modules (%.1f hours of training).</p>
					<p>Certificate number: <b>%s</b><br>Valid until %s.</p>
					<a href="%s">View your certificate</a>
				</body>
				</html>
				`,
					name,
					cert.Data.ModulesCompleted,
					cert.Data.TotalHours,
					html.EscapeString(cert.CertificateNumber),
					cert.ExpiresAt.Format("January 2, 2006"),
					link,
				),
			},
		},
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid answers 202 on success
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sendgrid error: status=%d body=%s", resp.StatusCode, body)
	}
	return nil
}
