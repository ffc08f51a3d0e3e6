package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"donation-service/internal/models"
	"donation-service/pkg/common"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// MinDonationAmount is the smallest accepted donation in whole currency
// units (KSh).
const MinDonationAmount = 10

// Task type, mirrored in internal/worker to avoid an import cycle.
const TypeDonationReceipt = "donation-receipt"

type DonationReceiptPayload struct {
	DonationId    uint    `json:"donationId"`
	Donor         string  `json:"donor"`
	Phone         string  `json:"phone"`
	Amount        float64 `json:"amount"`
	ReceiptNumber string  `json:"receiptNumber"`
}

var kenyanPhone = regexp.MustCompile(`^(?:254|\+254|0)?(7[0-9]{8})$`)

// DonationService owns the donation lifecycle. It is the only component
// that mutates a donation's status, and every terminal transition is a
// conditional update out of pending so the webhook and the fallback
// reconciler can never both apply one.
type DonationService struct {
	DB          *gorm.DB
	Mpesa       *MpesaService
	AsynqClient *asynq.Client
}

func NewDonationService(db *gorm.DB, mpesa *MpesaService, asynqClient *asynq.Client) *DonationService {
	return &DonationService{DB: db, Mpesa: mpesa, AsynqClient: asynqClient}
}

type CreateDonationDTO struct {
	Donor     string  `json:"donor"`
	Phone     string  `json:"phone"`
	Amount    float64 `json:"amount"`
	Anonymous bool    `json:"anonymous"`
	Campaign  string  `json:"campaign"`
	Message   string  `json:"message"`
	UserId    *uint   `json:"-"`
}

type CreateDonationResult struct {
	DonationId        uint   `json:"donationId"`
	CheckoutRequestId string `json:"checkoutRequestId,omitempty"`
	CustomerMessage   string `json:"customerMessage,omitempty"`
}

// ValidateDonation checks a donation intent before anything is persisted
// or sent to the gateway.
func ValidateDonation(dto CreateDonationDTO) *ValidationError {
	var fieldErrors []FieldError

	if dto.Amount < MinDonationAmount {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "amount",
			Message: fmt.Sprintf("minimum donation amount is KSh %d", MinDonationAmount),
		})
	}

	phone := strings.ReplaceAll(dto.Phone, " ", "")
	if !kenyanPhone.MatchString(phone) {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "phone",
			Message: "please provide a valid Kenyan phone number",
		})
	}

	if !dto.Anonymous && strings.TrimSpace(dto.Donor) == "" {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "donor",
			Message: "donor name is required when not anonymous",
		})
	}

	if len(dto.Message) > 500 {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   "message",
			Message: "message cannot exceed 500 characters",
		})
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Errors: fieldErrors}
	}
	return nil
}

// CreateDonation persists a pending donation, then initiates the STK
// push. A gateway failure leaves the record pending: the push may have
// reached the donor's phone, and the fallback reconciler or an admin can
// still resolve it.
func (s *DonationService) CreateDonation(ctx context.Context, dto CreateDonationDTO) (*CreateDonationResult, error) {
	if verr := ValidateDonation(dto); verr != nil {
		return nil, verr
	}

	donor := strings.TrimSpace(dto.Donor)
	if dto.Anonymous {
		donor = "Anonymous"
	}

	donation := models.Donation{
		Donor:         donor,
		Phone:         FormatPhoneNumber(dto.Phone),
		Amount:        dto.Amount,
		Status:        models.DonationPending,
		Anonymous:     dto.Anonymous,
		Message:       dto.Message,
		UserId:        dto.UserId,
		TransactionId: uuid.NewString(),
		PaymentMethod: "mpesa",
	}
	if dto.Campaign != "" {
		donation.Campaign = &dto.Campaign
	}

	if err := s.DB.Create(&donation).Error; err != nil {
		return nil, err
	}

	description := "Donation"
	if dto.Campaign != "" {
		description = "Donation - " + dto.Campaign
	}

	pushResp, err := s.Mpesa.InitiateSTKPush(ctx, STKPushInput{
		Phone:       dto.Phone,
		Amount:      dto.Amount,
		Reference:   fmt.Sprintf("DON-%d", donation.ID),
		Description: description,
	})
	if err != nil {
		// Record stays pending for manual or fallback reconciliation.
		log.Printf("STK push failed for donation %d: %v", donation.ID, err)
		return &CreateDonationResult{DonationId: donation.ID}, err
	}

	if err := s.attachCheckoutHandle(donation.ID, pushResp); err != nil {
		// Without the handle neither the webhook nor the fallback sweep
		// can match the record, so the caller must know.
		log.Printf("Failed to store checkout handle for donation %d: %v", donation.ID, err)
		return &CreateDonationResult{DonationId: donation.ID}, err
	}

	return &CreateDonationResult{
		DonationId:        donation.ID,
		CheckoutRequestId: pushResp.CheckoutRequestID,
		CustomerMessage:   pushResp.CustomerMessage,
	}, nil
}

// attachCheckoutHandle records the callback correlation key on a freshly
// created donation. The handle is write-once.
func (s *DonationService) attachCheckoutHandle(donationId uint, pushResp *STKPushResponse) error {
	rawResp, _ := json.Marshal(pushResp)
	result := s.DB.Model(&models.Donation{}).
		Where("id = ? AND mpesa_request_id IS NULL", donationId).
		Updates(map[string]interface{}{
			"mpesa_request_id": pushResp.CheckoutRequestID,
			"mpesa_response":   string(rawResp),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("checkout handle already set for donation %d", donationId)
	}
	return nil
}

// ReconcileCallback applies the provider's webhook outcome to the
// matching donation. It is idempotent and never fails outward: the
// provider must always receive a 200 acknowledgement or it retries.
func (s *DonationService) ReconcileCallback(payload []byte) error {
	callback, err := ParseSTKCallback(payload)
	if err != nil {
		s.logCallback("Malformed callback payload", string(payload), 0, "")
		return nil
	}

	if callback.CheckoutRequestID == "" {
		s.logCallback("Callback without checkout request id", string(payload), 0, "")
		return nil
	}

	if callback.CallbackMetadata == nil {
		// Push rejected, cancelled or timed out before completion.
		rows := s.failDonation(callback.CheckoutRequestID, string(payload))
		if rows == 0 {
			s.logCallback("No pending donation for failed callback", string(payload), 0, callback.CheckoutRequestID)
		} else {
			s.logCallback("Donation marked failed", string(payload), 1, callback.CheckoutRequestID)
		}
		return nil
	}

	details, err := callback.CallbackMetadata.Decode()
	if err != nil {
		log.Printf("Callback metadata decode failed for %s: %v", callback.CheckoutRequestID, err)
		s.logCallback("Callback metadata decode failed", string(payload), 0, callback.CheckoutRequestID)
		return nil
	}

	now := time.Now()
	result := s.DB.Model(&models.Donation{}).
		Where("mpesa_request_id = ? AND status = ?", callback.CheckoutRequestID, models.DonationPending).
		Updates(map[string]interface{}{
			"status":                 models.DonationCompleted,
			"mpesa_receipt_number":   details.ReceiptNumber,
			"mpesa_transaction_date": details.TransactionDate,
			"mpesa_response":         string(payload),
			"completed_at":           now,
		})

	if result.Error != nil {
		log.Printf("Failed to complete donation %s: %v", callback.CheckoutRequestID, result.Error)
		s.logCallback("Donation update failed", string(payload), 0, callback.CheckoutRequestID)
		return nil
	}

	if result.RowsAffected == 0 {
		// Unknown handle or already terminal; acknowledged either way.
		s.logCallback("No pending donation for callback", string(payload), 0, callback.CheckoutRequestID)
		return nil
	}

	s.logCallback("Donation completed", string(payload), 1, callback.CheckoutRequestID)
	s.enqueueReceipt(callback.CheckoutRequestID, details.ReceiptNumber)
	return nil
}

// QueryStatus proxies the authoritative provider query. It does not
// mutate the donation: the webhook path owns terminal transitions, with
// the scheduled fallback as the only other writer.
func (s *DonationService) QueryStatus(ctx context.Context, checkoutRequestId string) (*STKQueryResponse, error) {
	return s.Mpesa.CheckSTKStatus(ctx, checkoutRequestId)
}

// ReconcilePending resolves aging pending donations whose callback never
// arrived. Same conditional transitions as the webhook path, so running
// both concurrently still yields at most one terminal write per record.
func (s *DonationService) ReconcilePending(ctx context.Context, olderThan time.Duration) {
	var pending []models.Donation
	cutoff := time.Now().Add(-olderThan)
	err := s.DB.Where("status = ? AND mpesa_request_id IS NOT NULL AND created_at < ?", models.DonationPending, cutoff).
		Order("created_at asc").
		Limit(50).
		Find(&pending).Error
	if err != nil {
		log.Printf("Fallback reconciliation query failed: %v", err)
		return
	}

	for _, donation := range pending {
		status, err := s.Mpesa.CheckSTKStatus(ctx, *donation.MpesaRequestId)
		if err != nil {
			// Transient provider errors mean still pending.
			continue
		}

		switch {
		case status.ResultCode == "":
			// No definitive outcome yet.
		case status.ResultCode == ResultCodeSuccess:
			raw, _ := json.Marshal(status)
			now := time.Now()
			result := s.DB.Model(&models.Donation{}).
				Where("id = ? AND status = ?", donation.ID, models.DonationPending).
				Updates(map[string]interface{}{
					"status":         models.DonationCompleted,
					"mpesa_response": string(raw),
					"completed_at":   now,
				})
			if result.RowsAffected > 0 {
				log.Printf("Fallback reconciliation completed donation %d", donation.ID)
				s.logCallback("Donation completed by status query", string(raw), 1, *donation.MpesaRequestId)
				s.enqueueReceipt(*donation.MpesaRequestId, "")
			}
		default:
			raw, _ := json.Marshal(status)
			rows := s.failDonation(*donation.MpesaRequestId, string(raw))
			if rows > 0 {
				log.Printf("Fallback reconciliation failed donation %d (ResultCode %s)", donation.ID, status.ResultCode)
			}
		}
	}
}

// StartScheduler runs the fallback reconciliation sweep every 5 minutes
// for donations pending longer than 2 minutes.
func (s *DonationService) StartScheduler() {
	c := cron.New()
	_, err := c.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()
		s.ReconcilePending(ctx, 2*time.Minute)
	})
	if err != nil {
		log.Printf("Error scheduling fallback reconciliation: %v", err)
		return
	}
	c.Start()
	log.Println("Donation reconciliation scheduler started (every 5 minutes)")
}

type UpdateStatusDTO struct {
	DonationId uint
	Status     string
	Notes      string
	ActorRole  string
}

// UpdateStatus is the administrative status override. Completed
// donations are immutable.
func (s *DonationService) UpdateStatus(dto UpdateStatusDTO) (*models.Donation, error) {
	if dto.ActorRole != "admin" {
		return nil, &AuthorizationError{Action: "update donation status"}
	}
	if !models.ValidDonationStatus(dto.Status) {
		return nil, &ValidationError{Errors: []FieldError{{Field: "status", Message: "invalid status value"}}}
	}

	var donation models.Donation
	if err := s.DB.First(&donation, dto.DonationId).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": dto.Status}
	if dto.Notes != "" {
		updates["admin_notes"] = dto.Notes
	}
	if dto.Status == models.DonationCompleted {
		updates["completed_at"] = time.Now()
	}

	// Completed records stay immutable even against a webhook completing
	// the donation between the read above and this write.
	result := s.DB.Model(&models.Donation{}).
		Where("id = ? AND status <> ?", dto.DonationId, models.DonationCompleted).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if err := s.DB.First(&donation, dto.DonationId).Error; err != nil {
			return nil, err
		}
		if donation.Status == models.DonationCompleted {
			return nil, &ValidationError{Errors: []FieldError{{Field: "status", Message: "completed donations cannot be modified"}}}
		}
		// The write matched no changed columns; the record already holds
		// the requested state.
		return &donation, nil
	}

	s.DB.First(&donation, dto.DonationId)
	return &donation, nil
}

// DeleteDonation removes a record. Completed donations are never deleted.
func (s *DonationService) DeleteDonation(id uint, actorRole string) error {
	if actorRole != "admin" {
		return &AuthorizationError{Action: "delete donations"}
	}

	var donation models.Donation
	if err := s.DB.First(&donation, id).Error; err != nil {
		return err
	}

	if donation.Status == models.DonationCompleted {
		return &ValidationError{Errors: []FieldError{{Field: "status", Message: "completed donations cannot be deleted"}}}
	}

	return s.DB.Delete(&donation).Error
}

type ListDonationsDTO struct {
	Search    string
	Status    string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
	ActorId   *uint
	ActorRole string
}

// ListDonations returns a filtered, paginated page of donations.
// Non-admin actors only see their own.
func (s *DonationService) ListDonations(dto ListDonationsDTO) (common.PaginationResult, error) {
	if dto.Page < 1 {
		dto.Page = 1
	}
	if dto.Limit < 1 {
		dto.Limit = 10
	}

	query := s.DB.Model(&models.Donation{})

	if dto.Search != "" {
		like := "%" + dto.Search + "%"
		if amount, err := strconv.ParseFloat(dto.Search, 64); err == nil {
			query = query.Where("donor LIKE ? OR phone LIKE ? OR amount = ?", like, like, amount)
		} else {
			query = query.Where("donor LIKE ? OR phone LIKE ?", like, like)
		}
	}
	if dto.Status != "" && dto.Status != "all" {
		query = query.Where("status = ?", dto.Status)
	}
	if dto.StartDate != "" {
		query = query.Where("created_at >= ?", dto.StartDate)
	}
	if dto.EndDate != "" {
		query = query.Where("created_at <= ?", dto.EndDate)
	}
	if dto.ActorRole != "admin" && dto.ActorId != nil {
		query = query.Where("user_id = ?", *dto.ActorId)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var donations []models.Donation
	err := query.Order("created_at desc").
		Offset((dto.Page - 1) * dto.Limit).
		Limit(dto.Limit).
		Find(&donations).Error
	if err != nil {
		return common.PaginationResult{}, err
	}

	return common.PaginateResponse(donations, total, dto.Page, dto.Limit, ""), nil
}

// GetDonation returns one donation, visible to admins and the owner.
func (s *DonationService) GetDonation(id uint, actorId *uint, actorRole string) (*models.Donation, error) {
	var donation models.Donation
	if err := s.DB.First(&donation, id).Error; err != nil {
		return nil, err
	}

	if actorRole != "admin" {
		if donation.UserId == nil || actorId == nil || *donation.UserId != *actorId {
			return nil, &AuthorizationError{Action: "access this donation"}
		}
	}

	return &donation, nil
}

type CampaignStat struct {
	Campaign string  `json:"campaign"`
	Total    float64 `json:"total"`
	Count    int64   `json:"count"`
}

type DonationStats struct {
	TotalDonations  int64          `json:"totalDonations"`
	TotalAmount     float64        `json:"totalAmount"`
	AverageDonation float64        `json:"averageDonation"`
	CampaignStats   []CampaignStat `json:"campaignStats"`
}

// Stats aggregates completed donations over a period
// (day|week|month|year|all).
func (s *DonationService) Stats(period, actorRole string) (*DonationStats, error) {
	if actorRole != "admin" {
		return nil, &AuthorizationError{Action: "access donation statistics"}
	}

	now := time.Now()
	var since time.Time
	switch period {
	case "day":
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "week":
		start := now.AddDate(0, 0, -int(now.Weekday()))
		since = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, now.Location())
	case "year":
		since = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	case "all":
		// no window
	default: // month
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}

	completed := func() *gorm.DB {
		q := s.DB.Model(&models.Donation{}).Where("status = ?", models.DonationCompleted)
		if !since.IsZero() {
			q = q.Where("completed_at >= ?", since)
		}
		return q
	}

	stats := &DonationStats{}
	if err := completed().Count(&stats.TotalDonations).Error; err != nil {
		return nil, err
	}

	var sum struct {
		Total float64
	}
	if err := completed().Select("COALESCE(SUM(amount), 0) as total").Scan(&sum).Error; err != nil {
		return nil, err
	}
	stats.TotalAmount = sum.Total
	if stats.TotalDonations > 0 {
		stats.AverageDonation = stats.TotalAmount / float64(stats.TotalDonations)
	}

	err := completed().Select("campaign, SUM(amount) as total, COUNT(*) as count").
		Where("campaign IS NOT NULL").
		Group("campaign").
		Order("total desc").
		Scan(&stats.CampaignStats).Error
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// LogProviderResult records an async provider notification that carries
// no checkout handle, such as a transaction status result.
func (s *DonationService) LogProviderResult(kind, payload string) {
	s.logCallback(kind, payload, 1, "")
}

func (s *DonationService) failDonation(checkoutRequestId, rawResponse string) int64 {
	result := s.DB.Model(&models.Donation{}).
		Where("mpesa_request_id = ? AND status = ?", checkoutRequestId, models.DonationPending).
		Updates(map[string]interface{}{
			"status":         models.DonationFailed,
			"mpesa_response": rawResponse,
		})
	if result.Error != nil {
		log.Printf("Failed to mark donation %s failed: %v", checkoutRequestId, result.Error)
		return 0
	}
	return result.RowsAffected
}

func (s *DonationService) logCallback(requestStr, response string, status int, trxId string) {
	entry := models.CallbackLog{
		Request:       requestStr,
		Response:      response,
		Status:        status,
		RequestType:   "Webhook",
		TransactionId: trxId,
		PaymentMethod: "Mpesa",
	}
	s.DB.Create(&entry)
}

func (s *DonationService) enqueueReceipt(checkoutRequestId, receiptNumber string) {
	if s.AsynqClient == nil {
		return
	}

	var donation models.Donation
	if err := s.DB.Where("mpesa_request_id = ?", checkoutRequestId).First(&donation).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("Receipt lookup failed for %s: %v", checkoutRequestId, err)
		}
		return
	}

	payload := DonationReceiptPayload{
		DonationId:    donation.ID,
		Donor:         donation.Donor,
		Phone:         donation.Phone,
		Amount:        donation.Amount,
		ReceiptNumber: receiptNumber,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal receipt payload: %v", err)
		return
	}

	task := asynq.NewTask(TypeDonationReceipt, data)
	if _, err := s.AsynqClient.Enqueue(task, asynq.TaskID(fmt.Sprintf("donation-receipt:%d", donation.ID))); err != nil {
		log.Printf("Failed to enqueue receipt for donation %d: %v", donation.ID, err)
	}
}
