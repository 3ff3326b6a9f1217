package utils

import (
	"errors"
	"fmt"
	"net/url"

	"gopkg.in/gomail.v2"

	"github.com/campusfeed/campusfeed/config"
)

// ErrMailNotConfigured is returned when no SMTP host or sender is set.
var ErrMailNotConfigured = errors.New("smtp not configured")

// MailSender delivers a message. Tests replace it.
var MailSender = func(m *gomail.Message) error {
	cfg := config.Get()
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	// SMTPTLS selects implicit TLS; otherwise gomail upgrades with STARTTLS when offered
	d.SSL = cfg.SMTPTLS || cfg.SMTPPort == 465
	return d.DialAndSend(m)
}

// SendMail sends a plain text email using SMTP settings from config.
func SendMail(to, subject, body string) error {
	cfg := config.Get()
	if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
		return ErrMailNotConfigured
	}
	m := gomail.NewMessage()
	m.SetAddressHeader("From", cfg.SMTPFrom, cfg.SMTPFromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return MailSender(m)
}

// SendVerificationMail mails a link that confirms ownership of a campus address.
func SendVerificationMail(to, name, token string) error {
	cfg := config.Get()
	link := fmt.Sprintf("%s/api/v1/auth/verify?token=%s", cfg.OAuthRedirectBase, url.QueryEscape(token))
	body := fmt.Sprintf("Hi %s,\n\nConfirm your %s address for %s Campus Feed:\n\n%s\n\nThe link expires in 24 hours.\n",
		name, to, cfg.CampusName, link)
	return SendMail(to, cfg.CampusName+" Campus Feed - verify your email", body)
}
