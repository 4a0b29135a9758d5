package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/you/rental-booking/internal/booking"
	"github.com/you/rental-booking/internal/domain"
	"github.com/you/rental-booking/internal/gateway"
	"github.com/you/rental-booking/internal/ledger"
	"github.com/you/rental-booking/internal/rates"
	"github.com/you/rental-booking/internal/recon"
	"github.com/you/rental-booking/internal/webhook"
)

// webhookLogReader is the slice of the log repo the monitoring API reads.
type webhookLogReader interface {
	Recent(ctx context.Context, status domain.WebhookStatus, limit int) ([]domain.WebhookLog, error)
	ByProviderEventID(ctx context.Context, providerEventID string) ([]domain.WebhookLog, error)
}

type Handler struct {
	guard     *webhook.Guard
	orch      *recon.Orchestrator
	ledgerSvc *ledger.Service
	payments  *ledger.Repo
	bookings  *booking.Repo
	rates     *rates.Repo
	logs      webhookLogReader
	charger   gateway.Charger // nil when no gateway is configured
}

func NewHandler(guard *webhook.Guard, orch *recon.Orchestrator, ledgerSvc *ledger.Service,
	payments *ledger.Repo, bookings *booking.Repo, rateRepo *rates.Repo,
	logs *webhook.LogRepo, charger gateway.Charger) *Handler {
	return &Handler{
		guard: guard, orch: orch, ledgerSvc: ledgerSvc,
		payments: payments, bookings: bookings, rates: rateRepo,
		logs: logs, charger: charger,
	}
}

// GatewayWebhook ingests one provider callback. 200 carries the processing
// summary (also for duplicates); 4xx means don't retry, 5xx means redeliver.
func (h *Handler) GatewayWebhook(c *gin.Context) {
	var d webhook.Delivery
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.guard.Ingest(c.Request.Context(), d)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

type createBookingReq struct {
	CustomerID             string `json:"customer_id"`
	AmountTotal            string `json:"amount_total" binding:"required"`
	Currency               string `json:"currency" binding:"required"`
	PaymentPercentRequired string `json:"payment_percent_required"`
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	total, err := domain.MoneyFromString(req.AmountTotal, req.Currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	percent := decimal.Zero
	if req.PaymentPercentRequired != "" {
		if percent, err = decimal.NewFromString(req.PaymentPercentRequired); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	b := &domain.Booking{
		CustomerID:             req.CustomerID,
		Currency:               req.Currency,
		AmountTotal:            total.Amount,
		PaymentPercentRequired: percent,
	}
	if err := h.bookings.Create(c.Request.Context(), b); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, b)
}

type createPaymentReq struct {
	BookingID string `json:"booking_id" binding:"required"`
	Intent    string `json:"intent" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	Currency  string `json:"currency" binding:"required"`
	Method    string `json:"method" binding:"required"`
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req createPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	base, err := domain.MoneyFromString(req.Amount, req.Currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.ledgerSvc.CreatePending(c.Request.Context(), req.BookingID, domain.PaymentIntent(req.Intent), base, req.Method)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

type chargeReq struct {
	SourceID  string `json:"source_id"`
	CardToken string `json:"card_token"`
}

// IssueCharge creates the gateway charge for a pending ledger entry and
// activates it with the provider reference. Settlement still arrives only by
// webhook.
func (h *Handler) IssueCharge(c *gin.Context) {
	if h.charger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payment gateway not configured"})
		return
	}
	var req chargeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	p, err := h.payments.ByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	ref, expiresAt, err := h.charger.CreateCharge(ctx, gateway.ChargeRequest{
		PaymentID: p.ID,
		BookingID: p.BookingID,
		Amount:    p.TotalAmount,
		Currency:  p.Currency,
		SourceID:  req.SourceID,
		CardToken: req.CardToken,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	ap, err := h.payments.Activate(ctx, p.ID, ref, &expiresAt)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ap)
}

type insertRateReq struct {
	From          string     `json:"from" binding:"required"`
	To            string     `json:"to" binding:"required"`
	Rate          string     `json:"rate" binding:"required"`
	EffectiveFrom *time.Time `json:"effective_from"`
	Source        string     `json:"source"`
}

// InsertRate appends a manual rate override. Existing rows are never touched;
// the new row simply supersedes them.
func (h *Handler) InsertRate(c *gin.Context) {
	var req insertRateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	row := &domain.ConversionRate{
		FromCurrency: req.From,
		ToCurrency:   req.To,
		Rate:         rate,
		Source:       domain.RateOrigin(req.Source),
	}
	if req.EffectiveFrom != nil {
		row.EffectiveFrom = *req.EffectiveFrom
	}
	if err := h.rates.Insert(c.Request.Context(), row); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, row)
}

// --- monitoring surface ---

func (h *Handler) MonitorWebhooks(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	rows, err := h.logs.Recent(c.Request.Context(), domain.WebhookStatus(c.Query("status")), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func (h *Handler) MonitorWebhookEvent(c *gin.Context) {
	rows, err := h.logs.ByProviderEventID(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func (h *Handler) MonitorBooking(c *gin.Context) {
	ctx := c.Request.Context()
	b, err := h.bookings.ByID(ctx, c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	entries, err := h.payments.ListByBooking(ctx, b.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	agg, err := h.payments.AggregateForBooking(ctx, b.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking": b,
		"ledger":  entries,
		"aggregate": gin.H{
			"paid_total":         agg.PaidTotal,
			"refund_total":       agg.RefundTotal,
			"net_paid":           agg.NetPaid,
			"deposit_authorized": agg.DepositAuthorized,
		},
	})
}

func (h *Handler) MonitorRates(c *gin.Context) {
	rows, err := h.rates.History(c.Request.Context(), c.Query("from"), c.Query("to"), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, webhook.ErrBadDelivery):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStateConflict),
		errors.Is(err, domain.ErrInvalidIntent):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateUnavailable),
		errors.Is(err, domain.ErrMethodDisabled),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
