package worker

import (
	"encoding/json"

	"donation-service/internal/consumers"

	"github.com/hibiken/asynq"
)

// Task Types
const (
	TypeDonationReceipt = "donation-receipt"
)

// Task Creators

func NewDonationReceiptTask(payload consumers.DonationReceiptDTO) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDonationReceipt, data), nil
}
