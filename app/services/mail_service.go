package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// MailService sends transactional emails
type MailService interface {
	SendRecoveryCode(to, code string, ttl time.Duration) error
}

// MailSender delivers a built message. *gomail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

var recoveryTemplate = template.Must(template.New("recovery").Parse(`<p>Hola,</p>
<p>Tu código para restablecer la contraseña de {{.App}} es:</p>
<p><strong>{{.Code}}</strong></p>
<p>Vence en {{.Minutes}} minutos.</p>
<p>Si no lo pediste, ignora este mensaje.</p>`))

type recoveryData struct {
	App     string
	Code    string
	Minutes int
}

// GomailService sends mail over SMTP with gomail
type GomailService struct {
	sender    MailSender
	fromEmail string
	fromName  string
	appName   string
}

// NewGomailService creates an SMTP mail service
func NewGomailService(host string, port int, username, password, fromEmail, fromName string) *GomailService {
	return NewGomailServiceWithSender(gomail.NewDialer(host, port, username, password), fromEmail, fromName)
}

// NewGomailServiceWithSender creates a mail service on top of an existing sender
func NewGomailServiceWithSender(sender MailSender, fromEmail, fromName string) *GomailService {
	return &GomailService{sender: sender, fromEmail: fromEmail, fromName: fromName, appName: fromName}
}

// SendRecoveryCode emails a password recovery code
func (s *GomailService) SendRecoveryCode(to, code string, ttl time.Duration) error {
	if to == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("invalid email address: %s", to)
	}

	var body bytes.Buffer
	data := recoveryData{App: s.appName, Code: code, Minutes: int(ttl.Minutes())}
	if err := recoveryTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to render recovery email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("%s: código de recuperación", s.appName))
	m.SetBody("text/html", body.String())

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send recovery email: %w", err)
	}
	return nil
}

// LogMailService only logs outgoing mail. Used when SMTP is disabled.
type LogMailService struct {
	logger *zap.Logger
}

// NewLogMailService creates a mail service that writes to the logger
func NewLogMailService(logger *zap.Logger) *LogMailService {
	return &LogMailService{logger: logger}
}

// SendRecoveryCode logs the recovery code instead of sending it
func (s *LogMailService) SendRecoveryCode(to, code string, ttl time.Duration) error {
	s.logger.Info("Recovery code issued (email disabled)",
		zap.String("to", to),
		zap.String("code", code),
		zap.Duration("ttl", ttl))
	return nil
}
