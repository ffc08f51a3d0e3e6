package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMpesaSettings struct {
	params *MpesaParams
}

func (s *stubMpesaSettings) MpesaSettings() (*MpesaParams, error) {
	return s.params, nil
}

func TestFormatPhoneNumber(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0712 345 678", "254712345678"},
		{"0712-345-678", "254712345678"},
		{"(0712) 345678", "254712345678"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, FormatPhoneNumber(tc.input), "input %q", tc.input)
	}
}

func TestGeneratePassword(t *testing.T) {
	password, timestamp := GeneratePassword("174379", "passkey123")

	assert.Len(t, timestamp, 14)
	_, err := time.Parse("20060102150405", timestamp)
	assert.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(password)
	require.NoError(t, err)
	assert.Equal(t, "174379"+"passkey123"+timestamp, string(decoded))
}

func TestGetAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/v1/generate", r.URL.Path)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))

		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		assert.Equal(t, expected, r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode(AccessTokenResponse{AccessToken: "token-abc", ExpiresIn: "3599"})
	}))
	defer srv.Close()

	svc := NewMpesaService(&stubMpesaSettings{params: &MpesaParams{
		BaseUrl:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
	}})

	token, err := svc.GetAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-abc", token)
}

func TestGetAccessTokenMissingConfig(t *testing.T) {
	svc := NewMpesaService(&stubMpesaSettings{params: &MpesaParams{}})

	_, err := svc.GetAccessToken(context.Background())
	require.Error(t, err)

	var authErr *GatewayAuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestInitiateSTKPush(t *testing.T) {
	var captured STKPushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(AccessTokenResponse{AccessToken: "token-abc"})
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
			json.NewDecoder(r.Body).Decode(&captured)
			json.NewEncoder(w).Encode(STKPushResponse{
				MerchantRequestID: "merchant-1",
				CheckoutRequestID: "ws_CO_123",
				ResponseCode:      "0",
				CustomerMessage:   "Success. Request accepted for processing",
			})
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	svc := NewMpesaService(&stubMpesaSettings{params: &MpesaParams{
		BaseUrl:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		PassKey:        "passkey",
		Shortcode:      "174379",
		CallbackUrl:    "https://example.com/api/donations/mpesa-callback",
	}})

	resp, err := svc.InitiateSTKPush(context.Background(), STKPushInput{
		Phone:  "0712345678",
		Amount: 100.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_123", resp.CheckoutRequestID)

	assert.Equal(t, "174379", captured.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", captured.TransactionType)
	assert.Equal(t, 100, captured.Amount)
	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "254712345678", captured.PartyA)
	assert.Equal(t, "https://example.com/api/donations/mpesa-callback", captured.CallBackURL)
	assert.True(t, strings.HasPrefix(captured.AccountReference, "DON-"))
	assert.NotEmpty(t, captured.Password)
	assert.NotEmpty(t, captured.Timestamp)
}

func TestCheckSTKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(AccessTokenResponse{AccessToken: "token-abc"})
		case "/mpesa/stkpushquery/v1/query":
			var req stkQueryRequest
			json.NewDecoder(r.Body).Decode(&req)
			assert.Equal(t, "ws_CO_123", req.CheckoutRequestID)
			json.NewEncoder(w).Encode(STKQueryResponse{
				CheckoutRequestID: "ws_CO_123",
				ResponseCode:      "0",
				ResultCode:        ResultCodeCancelled,
				ResultDesc:        "Request cancelled by user",
			})
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	svc := NewMpesaService(&stubMpesaSettings{params: &MpesaParams{
		BaseUrl:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		PassKey:        "passkey",
		Shortcode:      "174379",
	}})

	resp, err := svc.CheckSTKStatus(context.Background(), "ws_CO_123")
	require.NoError(t, err)
	assert.Equal(t, ResultCodeCancelled, resp.ResultCode)
}

func TestCheckSTKStatusProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(AccessTokenResponse{AccessToken: "token-abc"})
			return
		}
		http.Error(w, `{"errorCode":"500.001.1001"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewMpesaService(&stubMpesaSettings{params: &MpesaParams{
		BaseUrl:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		PassKey:        "passkey",
		Shortcode:      "174379",
	}})

	_, err := svc.CheckSTKStatus(context.Background(), "ws_CO_123")
	require.Error(t, err)

	var reqErr *GatewayRequestError
	assert.ErrorAs(t, err, &reqErr)
}
