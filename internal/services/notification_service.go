package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"donation-service/pkg/common"
)

// NotificationService sends SMS through the configured HTTP gateway and
// email through the configured SMTP relay. Settings are read per call,
// same as the payment gateway client.
type NotificationService struct {
	Settings *SettingsService
}

func NewNotificationService(settings *SettingsService) *NotificationService {
	return &NotificationService{Settings: settings}
}

// SendSms posts a message to the configured SMS gateway.
func (s *NotificationService) SendSms(phone, message string) (interface{}, error) {
	settings, err := s.Settings.SmsSettings()
	if err != nil {
		return nil, err
	}
	if settings.ApiKey == "" || settings.ApiUrl == "" {
		return nil, fmt.Errorf("SMS settings are not properly configured")
	}

	sender := settings.SenderId
	if sender == "" {
		sender = "Donations"
	}

	headers := map[string]string{
		"Authorization": "Bearer " + settings.ApiKey,
	}
	payload := map[string]string{
		"to":      FormatPhoneNumber(phone),
		"from":    sender,
		"message": message,
	}

	return common.Post(settings.ApiUrl, payload, headers)
}

// SendTestSms verifies the SMS configuration end to end.
func (s *NotificationService) SendTestSms(phone string) (interface{}, error) {
	return s.SendSms(phone, "This is a test SMS. If you received this, your SMS configuration is working.")
}

// SendEmail delivers a plain-text message through the configured SMTP
// relay.
func (s *NotificationService) SendEmail(to, subject, body string) error {
	settings, err := s.Settings.EmailSettings()
	if err != nil {
		return err
	}
	if settings.Host == "" || settings.Port == 0 {
		return fmt.Errorf("email settings are not properly configured")
	}

	from := settings.From
	if from == "" {
		from = settings.User
	}

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	auth := smtp.PlainAuth("", settings.User, settings.Pass, settings.Host)
	return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg))
}

// SendTestEmail verifies the SMTP configuration end to end.
func (s *NotificationService) SendTestEmail(to string) error {
	return s.SendEmail(to, "Test Email", "If you received this, your email configuration is working.")
}
