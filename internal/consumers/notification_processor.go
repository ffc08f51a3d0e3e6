package consumers

import (
	"fmt"
	"log"

	"donation-service/internal/services"

	"gorm.io/gorm"
)

type NotificationProcessor struct {
	DB           *gorm.DB
	Notification *services.NotificationService
}

func NewNotificationProcessor(db *gorm.DB, notification *services.NotificationService) *NotificationProcessor {
	return &NotificationProcessor{
		DB:           db,
		Notification: notification,
	}
}

// --- DTOs ---

type DonationReceiptDTO struct {
	DonationId    uint    `json:"donationId"`
	Donor         string  `json:"donor"`
	Phone         string  `json:"phone"`
	Amount        float64 `json:"amount"`
	ReceiptNumber string  `json:"receiptNumber"`
}

// ProcessDonationReceipt sends the donor a confirmation SMS after a
// donation completes. Delivery failures are logged, not retried by hand:
// asynq retries the task.
func (p *NotificationProcessor) ProcessDonationReceipt(dto DonationReceiptDTO) error {
	message := fmt.Sprintf("Dear %s, thank you for your donation of KSh %.0f.", dto.Donor, dto.Amount)
	if dto.ReceiptNumber != "" {
		message = fmt.Sprintf("%s Receipt: %s.", message, dto.ReceiptNumber)
	}

	if _, err := p.Notification.SendSms(dto.Phone, message); err != nil {
		log.Printf("Receipt SMS failed for donation %d: %v", dto.DonationId, err)
		return err
	}

	log.Printf("Receipt SMS sent for donation %d", dto.DonationId)
	return nil
}
