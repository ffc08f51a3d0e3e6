package models

import (
	"time"
)

// Setting types, one row per integration
const (
	SettingGeneral = "general"
	SettingMpesa   = "mpesa"
	SettingEmail   = "email"
	SettingSms     = "sms"
)

func ValidSettingType(t string) bool {
	switch t {
	case SettingGeneral, SettingMpesa, SettingEmail, SettingSms:
		return true
	}
	return false
}

type Setting struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Type string `gorm:"column:type;size:20;not null;uniqueIndex" json:"type"`

	// General
	SiteName        string `gorm:"column:site_name;size:255" json:"site_name"`
	SiteDescription string `gorm:"column:site_description;type:text" json:"site_description"`
	ContactEmail    string `gorm:"column:contact_email;size:255" json:"contact_email"`
	ContactPhone    string `gorm:"column:contact_phone;size:50" json:"contact_phone"`

	// M-Pesa
	BaseUrl            string `gorm:"column:base_url;size:255" json:"base_url"`
	ConsumerKey        string `gorm:"column:consumer_key;type:longtext" json:"consumer_key"`
	ConsumerSecret     string `gorm:"column:consumer_secret;type:longtext" json:"consumer_secret"`
	PassKey            string `gorm:"column:pass_key;type:longtext" json:"pass_key"`
	Shortcode          string `gorm:"column:shortcode;size:20" json:"shortcode"`
	CallbackUrl        string `gorm:"column:callback_url;size:255" json:"callback_url"`
	InitiatorName      string `gorm:"column:initiator_name;size:255" json:"initiator_name"`
	SecurityCredential string `gorm:"column:security_credential;type:longtext" json:"security_credential"`

	// Email (SMTP)
	EmailHost string `gorm:"column:email_host;size:255" json:"email_host"`
	EmailPort int    `gorm:"column:email_port;default:0" json:"email_port"`
	EmailUser string `gorm:"column:email_user;size:255" json:"email_user"`
	EmailPass string `gorm:"column:email_pass;type:longtext" json:"email_pass"`
	EmailFrom string `gorm:"column:email_from;size:255" json:"email_from"`

	// SMS gateway
	SmsApiKey   string `gorm:"column:sms_api_key;type:longtext" json:"sms_api_key"`
	SmsApiUrl   string `gorm:"column:sms_api_url;size:255" json:"sms_api_url"`
	SmsSenderId string `gorm:"column:sms_sender_id;size:50" json:"sms_sender_id"`

	UpdatedBy *uint     `gorm:"column:updated_by" json:"updated_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}
