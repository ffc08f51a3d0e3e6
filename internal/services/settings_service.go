package services

import (
	"errors"
	"os"
	"strconv"

	"donation-service/internal/models"

	"gorm.io/gorm"
)

// SettingsService reads and mutates per-integration settings. Gateway
// clients look settings up on every call so an admin can rotate
// credentials without a restart; environment variables back each field
// when no row exists for the integration type.
type SettingsService struct {
	DB *gorm.DB
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	return &SettingsService{DB: db}
}

// MpesaParams is the merged view the gateway client consumes.
type MpesaParams struct {
	BaseUrl            string
	ConsumerKey        string
	ConsumerSecret     string
	PassKey            string
	Shortcode          string
	CallbackUrl        string
	InitiatorName      string
	SecurityCredential string
}

type SmsParams struct {
	ApiKey   string
	ApiUrl   string
	SenderId string
}

type EmailParams struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func fallback(dbVal, envKey string) string {
	if dbVal != "" {
		return dbVal
	}
	return os.Getenv(envKey)
}

func (s *SettingsService) settingsRow(settingType string) *models.Setting {
	var row models.Setting
	err := s.DB.Where("type = ?", settingType).First(&row).Error
	if err != nil {
		// Missing row or a read failure both fall back to env defaults.
		return &models.Setting{Type: settingType}
	}
	return &row
}

func (s *SettingsService) MpesaSettings() (*MpesaParams, error) {
	row := s.settingsRow(models.SettingMpesa)
	return &MpesaParams{
		BaseUrl:            fallback(row.BaseUrl, "MPESA_API_URL"),
		ConsumerKey:        fallback(row.ConsumerKey, "MPESA_CONSUMER_KEY"),
		ConsumerSecret:     fallback(row.ConsumerSecret, "MPESA_CONSUMER_SECRET"),
		PassKey:            fallback(row.PassKey, "MPESA_PASSKEY"),
		Shortcode:          fallback(row.Shortcode, "MPESA_SHORTCODE"),
		CallbackUrl:        fallback(row.CallbackUrl, "MPESA_CALLBACK_URL"),
		InitiatorName:      fallback(row.InitiatorName, "MPESA_INITIATOR_NAME"),
		SecurityCredential: fallback(row.SecurityCredential, "MPESA_SECURITY_CREDENTIAL"),
	}, nil
}

func (s *SettingsService) SmsSettings() (*SmsParams, error) {
	row := s.settingsRow(models.SettingSms)
	return &SmsParams{
		ApiKey:   fallback(row.SmsApiKey, "SMS_API_KEY"),
		ApiUrl:   fallback(row.SmsApiUrl, "SMS_API_URL"),
		SenderId: fallback(row.SmsSenderId, "SMS_SENDER_ID"),
	}, nil
}

func (s *SettingsService) EmailSettings() (*EmailParams, error) {
	row := s.settingsRow(models.SettingEmail)
	port := row.EmailPort
	if port == 0 {
		port, _ = strconv.Atoi(os.Getenv("EMAIL_PORT"))
	}
	return &EmailParams{
		Host: fallback(row.EmailHost, "EMAIL_HOST"),
		Port: port,
		User: fallback(row.EmailUser, "EMAIL_USER"),
		Pass: fallback(row.EmailPass, "EMAIL_PASS"),
		From: fallback(row.EmailFrom, "EMAIL_FROM"),
	}, nil
}

// GetSettings returns the stored row for a settings type. Admin read.
func (s *SettingsService) GetSettings(settingType string) (*models.Setting, error) {
	if !models.ValidSettingType(settingType) {
		return nil, &ValidationError{Errors: []FieldError{{Field: "type", Message: "unknown settings type"}}}
	}
	var row models.Setting
	err := s.DB.Where("type = ?", settingType).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Setting{Type: settingType}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpdateSettings upserts the row for a settings type. Admin only.
func (s *SettingsService) UpdateSettings(settingType string, updates map[string]interface{}, actorId uint, actorRole string) (*models.Setting, error) {
	if actorRole != "admin" {
		return nil, &AuthorizationError{Action: "update settings"}
	}
	if !models.ValidSettingType(settingType) {
		return nil, &ValidationError{Errors: []FieldError{{Field: "type", Message: "unknown settings type"}}}
	}

	var row models.Setting
	err := s.DB.Where("type = ?", settingType).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = models.Setting{Type: settingType}
		if err := s.DB.Create(&row).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	updates["updated_by"] = actorId
	if err := s.DB.Model(&row).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.DB.Where("type = ?", settingType).First(&row)
	return &row, nil
}
