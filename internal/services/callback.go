package services

import (
	"encoding/json"
	"fmt"
)

// STKCallbackEnvelope is the provider's webhook body:
// {Body: {stkCallback: {...}}}.
type STKCallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// PaymentDetails is the typed form of a successful callback's metadata.
type PaymentDetails struct {
	Amount          float64
	ReceiptNumber   string
	TransactionDate string
	PhoneNumber     string
}

// ParseSTKCallback decodes the raw webhook payload.
func ParseSTKCallback(payload []byte) (*STKCallback, error) {
	var envelope STKCallbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode callback: %w", err)
	}
	return &envelope.Body.StkCallback, nil
}

// Decode extracts the named items from the metadata list. A missing
// amount or receipt number is a decode error, not a silent zero value.
func (m *CallbackMetadata) Decode() (*PaymentDetails, error) {
	details := &PaymentDetails{}
	var haveAmount, haveReceipt bool

	for _, item := range m.Item {
		switch item.Name {
		case "Amount":
			if val, ok := item.Value.(float64); ok {
				details.Amount = val
				haveAmount = true
			}
		case "MpesaReceiptNumber":
			if val, ok := item.Value.(string); ok {
				details.ReceiptNumber = val
				haveReceipt = true
			}
		case "TransactionDate":
			// The provider sends the date as a numeric YYYYMMDDHHmmss.
			switch val := item.Value.(type) {
			case float64:
				details.TransactionDate = fmt.Sprintf("%.0f", val)
			case string:
				details.TransactionDate = val
			}
		case "PhoneNumber":
			switch val := item.Value.(type) {
			case float64:
				details.PhoneNumber = fmt.Sprintf("%.0f", val)
			case string:
				details.PhoneNumber = val
			}
		}
	}

	if !haveAmount {
		return nil, fmt.Errorf("callback metadata missing Amount")
	}
	if !haveReceipt {
		return nil, fmt.Errorf("callback metadata missing MpesaReceiptNumber")
	}

	return details, nil
}
