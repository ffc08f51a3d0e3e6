package models

import (
	"time"
)

// Donation statuses
const (
	DonationPending   = "pending"
	DonationCompleted = "completed"
	DonationFailed    = "failed"
	DonationRefunded  = "refunded"
)

// ValidDonationStatus reports whether s is one of the four lifecycle statuses.
func ValidDonationStatus(s string) bool {
	switch s {
	case DonationPending, DonationCompleted, DonationFailed, DonationRefunded:
		return true
	}
	return false
}

type Donation struct {
	ID                   uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Donor                string     `gorm:"column:donor;size:255;not null" json:"donor"`
	Phone                string     `gorm:"column:phone;size:20;not null" json:"phone"`
	Amount               float64    `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	Status               string     `gorm:"column:status;size:20;default:pending;index" json:"status"`
	Campaign             *string    `gorm:"column:campaign;size:255;index" json:"campaign"`
	Message              string     `gorm:"column:message;size:500" json:"message"`
	Anonymous            bool       `gorm:"column:anonymous;default:false" json:"anonymous"`
	UserId               *uint      `gorm:"column:user_id;index" json:"user_id"`
	TransactionId        string     `gorm:"column:transaction_id;size:255;index" json:"transaction_id"`
	MpesaRequestId       *string    `gorm:"column:mpesa_request_id;size:255;index" json:"mpesa_request_id"`
	MpesaReceiptNumber   *string    `gorm:"column:mpesa_receipt_number;size:255" json:"mpesa_receipt_number"`
	MpesaTransactionDate *string    `gorm:"column:mpesa_transaction_date;size:50" json:"mpesa_transaction_date"`
	MpesaResponse        string     `gorm:"column:mpesa_response;type:longtext" json:"mpesa_response"`
	PaymentMethod        string     `gorm:"column:payment_method;size:50;default:mpesa" json:"payment_method"`
	AdminNotes           string     `gorm:"column:admin_notes;type:text" json:"admin_notes"`
	CompletedAt          *time.Time `gorm:"column:completed_at" json:"completed_at"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Donation) TableName() string {
	return "donations"
}
