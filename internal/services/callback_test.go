package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallbackPayload = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 0,
			"ResultDesc": "The service request is processed successfully.",
			"CallbackMetadata": {
				"Item": [
					{"Name": "Amount", "Value": 100.00},
					{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
					{"Name": "TransactionDate", "Value": 20191219102115},
					{"Name": "PhoneNumber", "Value": 254712345678}
				]
			}
		}
	}
}`

const failedCallbackPayload = `{
	"Body": {
		"stkCallback": {
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": "ws_CO_191220191020363925",
			"ResultCode": 1032,
			"ResultDesc": "Request cancelled by user."
		}
	}
}`

func TestParseSTKCallbackSuccess(t *testing.T) {
	callback, err := ParseSTKCallback([]byte(successCallbackPayload))
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_191220191020363925", callback.CheckoutRequestID)
	assert.Equal(t, 0, callback.ResultCode)
	require.NotNil(t, callback.CallbackMetadata)

	details, err := callback.CallbackMetadata.Decode()
	require.NoError(t, err)
	assert.Equal(t, 100.0, details.Amount)
	assert.Equal(t, "NLJ7RT61SV", details.ReceiptNumber)
	assert.Equal(t, "20191219102115", details.TransactionDate)
	assert.Equal(t, "254712345678", details.PhoneNumber)
}

func TestParseSTKCallbackFailure(t *testing.T) {
	callback, err := ParseSTKCallback([]byte(failedCallbackPayload))
	require.NoError(t, err)

	assert.Equal(t, 1032, callback.ResultCode)
	assert.Nil(t, callback.CallbackMetadata)
}

func TestParseSTKCallbackMalformed(t *testing.T) {
	_, err := ParseSTKCallback([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeMissingReceipt(t *testing.T) {
	metadata := &CallbackMetadata{Item: []MetadataItem{
		{Name: "Amount", Value: 50.0},
	}}

	_, err := metadata.Decode()
	assert.ErrorContains(t, err, "MpesaReceiptNumber")
}

func TestDecodeMissingAmount(t *testing.T) {
	metadata := &CallbackMetadata{Item: []MetadataItem{
		{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
	}}

	_, err := metadata.Decode()
	assert.ErrorContains(t, err, "Amount")
}

func TestDecodeStringTransactionDate(t *testing.T) {
	metadata := &CallbackMetadata{Item: []MetadataItem{
		{Name: "Amount", Value: 50.0},
		{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
		{Name: "TransactionDate", Value: "20191219102115"},
		{Name: "PhoneNumber", Value: "254712345678"},
	}}

	details, err := metadata.Decode()
	require.NoError(t, err)
	assert.Equal(t, "20191219102115", details.TransactionDate)
	assert.Equal(t, "254712345678", details.PhoneNumber)
}
