package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"regexp"
	"time"

	"donation-service/pkg/common"
)

// MpesaSettingsSource supplies gateway credentials. Looked up on every
// call so rotated credentials take effect immediately.
type MpesaSettingsSource interface {
	MpesaSettings() (*MpesaParams, error)
}

// MpesaService wraps the Daraja OAuth, STK push, status query and C2B
// registration endpoints. Tokens are fetched per call; STK operations are
// low-frequency enough that caching is not worth the rotation hazard.
type MpesaService struct {
	Settings MpesaSettingsSource
}

func NewMpesaService(settings MpesaSettingsSource) *MpesaService {
	return &MpesaService{Settings: settings}
}

type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type STKPushInput struct {
	Phone       string
	Amount      float64
	Reference   string
	Description string
}

type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// STKQueryResponse is the authoritative provider-side outcome. Daraja
// returns the codes as strings: "0" success, "1032" cancelled by user,
// any other non-empty code a failure. An empty ResultCode means the
// transaction is still being processed.
type STKQueryResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

const (
	ResultCodeSuccess   = "0"
	ResultCodeCancelled = "1032"
)

var phoneSeparators = regexp.MustCompile(`\s+|-|\(|\)|\.|\+`)

// FormatPhoneNumber normalizes Kenyan numbers to the canonical
// 254XXXXXXXXX form. Anything without a recognizable prefix is passed
// through with 254 prepended; the provider rejects malformed numbers.
func FormatPhoneNumber(phone string) string {
	formatted := phoneSeparators.ReplaceAllString(phone, "")

	if len(formatted) > 0 && formatted[0] == '0' {
		return "254" + formatted[1:]
	}
	if len(formatted) >= 3 && formatted[:3] == "254" {
		return formatted
	}
	return "254" + formatted
}

// GeneratePassword derives the STK request password as
// Base64(shortcode + passkey + timestamp). The same timestamp must
// accompany the signed request.
func GeneratePassword(shortcode, passKey string) (password, timestamp string) {
	timestamp = time.Now().Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(shortcode + passKey + timestamp))
	return password, timestamp
}

// GetAccessToken exchanges the configured consumer key/secret for a
// bearer token.
func (s *MpesaService) GetAccessToken(ctx context.Context) (string, error) {
	settings, err := s.Settings.MpesaSettings()
	if err != nil {
		return "", &GatewayAuthError{Reason: "unable to load settings", Err: err}
	}
	if settings.BaseUrl == "" || settings.ConsumerKey == "" || settings.ConsumerSecret == "" {
		return "", &GatewayAuthError{Reason: "missing required M-Pesa configuration"}
	}

	auth := base64.StdEncoding.EncodeToString([]byte(settings.ConsumerKey + ":" + settings.ConsumerSecret))
	headers := map[string]string{"Authorization": "Basic " + auth}

	var token AccessTokenResponse
	url := fmt.Sprintf("%s/oauth/v1/generate?grant_type=client_credentials", settings.BaseUrl)
	if err := common.GetJSON(ctx, url, headers, &token); err != nil {
		return "", &GatewayAuthError{Reason: "provider rejected credentials", Err: err}
	}
	if token.AccessToken == "" {
		return "", &GatewayAuthError{Reason: "no access token in response"}
	}

	return token.AccessToken, nil
}

// TestConnection verifies the configured credentials by fetching a token.
func (s *MpesaService) TestConnection(ctx context.Context) (*AccessTokenResponse, error) {
	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return &AccessTokenResponse{AccessToken: token}, nil
}

// InitiateSTKPush signs and submits an STK push. The amount is rounded to
// a whole currency unit, as the provider requires integers.
func (s *MpesaService) InitiateSTKPush(ctx context.Context, input STKPushInput) (*STKPushResponse, error) {
	settings, err := s.Settings.MpesaSettings()
	if err != nil {
		return nil, &GatewayAuthError{Reason: "unable to load settings", Err: err}
	}

	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := GeneratePassword(settings.Shortcode, settings.PassKey)
	phone := FormatPhoneNumber(input.Phone)

	reference := input.Reference
	if reference == "" {
		reference = common.GenerateDonationRef()
	}
	description := input.Description
	if description == "" {
		description = "Donation"
	}

	request := STKPushRequest{
		BusinessShortCode: settings.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            int(math.Round(input.Amount)),
		PartyA:            phone,
		PartyB:            settings.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       settings.CallbackUrl,
		AccountReference:  reference,
		TransactionDesc:   description,
	}

	headers := map[string]string{"Authorization": "Bearer " + token}

	var response STKPushResponse
	url := fmt.Sprintf("%s/mpesa/stkpush/v1/processrequest", settings.BaseUrl)
	if err := common.PostJSON(ctx, url, request, headers, &response); err != nil {
		return nil, &GatewayRequestError{Op: "STK push", Err: err}
	}

	return &response, nil
}

// CheckSTKStatus issues the authoritative provider-side query for a
// checkout handle. Callers must treat an error here as "still pending",
// not as a failed payment.
func (s *MpesaService) CheckSTKStatus(ctx context.Context, checkoutRequestId string) (*STKQueryResponse, error) {
	settings, err := s.Settings.MpesaSettings()
	if err != nil {
		return nil, &GatewayAuthError{Reason: "unable to load settings", Err: err}
	}

	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	password, timestamp := GeneratePassword(settings.Shortcode, settings.PassKey)

	request := stkQueryRequest{
		BusinessShortCode: settings.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestId,
	}

	headers := map[string]string{"Authorization": "Bearer " + token}

	var response STKQueryResponse
	url := fmt.Sprintf("%s/mpesa/stkpushquery/v1/query", settings.BaseUrl)
	if err := common.PostJSON(ctx, url, request, headers, &response); err != nil {
		return nil, &GatewayRequestError{Op: "STK status check", Err: err}
	}

	return &response, nil
}

type c2bRegisterRequest struct {
	ShortCode       string `json:"ShortCode"`
	ResponseType    string `json:"ResponseType"`
	ConfirmationURL string `json:"ConfirmationURL"`
	ValidationURL   string `json:"ValidationURL"`
}

// RegisterC2BURL registers the confirmation/validation webhook URLs with
// the provider. Admin setup path.
func (s *MpesaService) RegisterC2BURL(ctx context.Context, apiBaseUrl string) (map[string]interface{}, error) {
	settings, err := s.Settings.MpesaSettings()
	if err != nil {
		return nil, &GatewayAuthError{Reason: "unable to load settings", Err: err}
	}

	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	request := c2bRegisterRequest{
		ShortCode:       settings.Shortcode,
		ResponseType:    "Completed",
		ConfirmationURL: apiBaseUrl + "/api/mpesa/confirmation",
		ValidationURL:   apiBaseUrl + "/api/mpesa/validation",
	}

	headers := map[string]string{"Authorization": "Bearer " + token}

	var response map[string]interface{}
	url := fmt.Sprintf("%s/mpesa/c2b/v1/registerurl", settings.BaseUrl)
	if err := common.PostJSON(ctx, url, request, headers, &response); err != nil {
		return nil, &GatewayRequestError{Op: "C2B URL registration", Err: err}
	}

	return response, nil
}

type transactionStatusRequest struct {
	Initiator          string `json:"Initiator"`
	SecurityCredential string `json:"SecurityCredential"`
	CommandID          string `json:"CommandID"`
	TransactionID      string `json:"TransactionID"`
	PartyA             string `json:"PartyA"`
	IdentifierType     string `json:"IdentifierType"`
	ResultURL          string `json:"ResultURL"`
	QueueTimeOutURL    string `json:"QueueTimeOutURL"`
	Remarks            string `json:"Remarks"`
	Occasion           string `json:"Occasion"`
}

// QueryTransactionStatus looks a transaction up by its receipt number.
func (s *MpesaService) QueryTransactionStatus(ctx context.Context, receiptNumber, apiBaseUrl string) (map[string]interface{}, error) {
	settings, err := s.Settings.MpesaSettings()
	if err != nil {
		return nil, &GatewayAuthError{Reason: "unable to load settings", Err: err}
	}

	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	request := transactionStatusRequest{
		Initiator:          settings.InitiatorName,
		SecurityCredential: settings.SecurityCredential,
		CommandID:          "TransactionStatusQuery",
		TransactionID:      receiptNumber,
		PartyA:             settings.Shortcode,
		IdentifierType:     "4", // organization shortcode
		ResultURL:          apiBaseUrl + "/api/donations/transaction-result",
		QueueTimeOutURL:    apiBaseUrl + "/api/donations/transaction-timeout",
		Remarks:            "Transaction status query",
		Occasion:           "Donation",
	}

	headers := map[string]string{"Authorization": "Bearer " + token}

	var response map[string]interface{}
	url := fmt.Sprintf("%s/mpesa/transactionstatus/v1/query", settings.BaseUrl)
	if err := common.PostJSON(ctx, url, request, headers, &response); err != nil {
		return nil, &GatewayRequestError{Op: "transaction status query", Err: err}
	}

	return response, nil
}
