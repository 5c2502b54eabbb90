// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"os"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendBookReady(toEmail, bookTitle string) error
	SendBookFailed(toEmail, bookTitle, reason string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	frontendURL string // Added to construct links
}

func NewEmailService(host string, port int, username, password, senderEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	// Get Frontend URL from ENV or default to a safe placeholder
	frontendURL := os.Getenv("FRONTEND_URL")

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		frontendURL: frontendURL,
	}
}

func (s *emailService) SendBookReady(toEmail, bookTitle string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("\"%s\" is ready to chat", bookTitle))

	libraryLink := fmt.Sprintf("%s/library", s.frontendURL)

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Your book is ready!</h2>
			<p>We finished indexing <strong>%s</strong>. You can start asking it questions now.</p>
			<a href="%s" style="background-color: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">Open your library</a>
		</div>
	`, bookTitle, libraryLink)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send book-ready mail to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Book-ready mail sent to %s\n", toEmail)
	return nil
}

func (s *emailService) SendBookFailed(toEmail, bookTitle, reason string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("We couldn't index \"%s\"", bookTitle))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Indexing failed</h2>
			<p>Something went wrong while indexing <strong>%s</strong>:</p>
			<p style="color: #B00020;">%s</p>
			<p>You can retry from your library. If the problem keeps happening, check your API credentials in settings.</p>
		</div>
	`, bookTitle, reason)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send book-failed mail to %s: %v\n", toEmail, err)
		return err
	}

	fmt.Printf("[MAILER] Book-failed mail sent to %s\n", toEmail)
	return nil
}
