// Payment HTTP handlers.
//
//   - POST /payments/create    (pending payment + WhatsApp contact URL)
//   - POST /payments/callback  (payment confirmation; activates premium)
//   - POST /payments/cancel
//   - GET  /payments/status
//
// The callback is an external trust boundary. With a webhook secret
// configured it must carry X-Kala-Signature: base64(HMAC-SHA256(body)).
// Without one it is accepted and logged as unverified.
package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kala-backend/internal/http/middleware"
	"github.com/tbourn/go-kala-backend/internal/services"
)

// HeaderSignature carries the callback body signature.
const HeaderSignature = "X-Kala-Signature"

//
// DTOs
//

// CreatePaymentRequest selects the payment method.
type CreatePaymentRequest struct {
	Method string `json:"method" binding:"required" example:"multicaixa"`
}

// CheckoutResponse tells the client where to finish the purchase.
type CheckoutResponse struct {
	Success  bool               `json:"success" example:"true"`
	Checkout *services.Checkout `json:"checkout"`
}

// PaymentCallbackRequest is a payment confirmation.
type PaymentCallbackRequest struct {
	TransactionID string `json:"transactionId" example:"KALA-3F9A0C12B7D4"`
	Status        string `json:"status"        example:"completed"`
	UserID        string `json:"userId"        example:"2d1f0c8e-6b1a-4b9e-9c3d-7a5e4f3b2c1d"`
	Method        string `json:"method,omitempty" example:"multicaixa"`
}

// CallbackResponse reports whether the callback was a repeat.
type CallbackResponse struct {
	Success          bool `json:"success"          example:"true"`
	AlreadyProcessed bool `json:"alreadyProcessed" example:"false"`
}

// SubscriptionResponse is the caller's premium state.
type SubscriptionResponse struct {
	Success      bool                         `json:"success" example:"true"`
	Subscription *services.SubscriptionStatus `json:"subscription"`
}

// CreatePayment godoc
// @ID          createPayment
// @Summary     Start a premium purchase
// @Description Records a pending payment and returns a WhatsApp contact URL that carries
// @Description the transaction id. Premium is activated by the callback.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreatePaymentRequest  true  "Payment method"
// @Success     201   {object}  handlers.CheckoutResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Unsupported method"
// @Router      /payments/create [post]
func (h *Handlers) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}
	co, err := h.payments.Create(c.Request.Context(), userID(c), req.Method)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, CheckoutResponse{Success: true, Checkout: co})
}

// PaymentCallback godoc
// @ID          paymentCallback
// @Summary     Payment confirmation callback
// @Description Accepts status "success" or "completed". Idempotent per transaction id.
// @Tags        Payments
// @Accept      json
// @Produce     json
// @Param       X-Kala-Signature  header  string                           false  "base64 HMAC-SHA256 of the body"
// @Param       body              body    handlers.PaymentCallbackRequest  true   "Confirmation"
// @Success     200  {object}  handlers.CallbackResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing fields or payment not completed"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad signature"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown user"
// @Router      /payments/callback [post]
func (h *Handlers) PaymentCallback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}

	lg := middleware.LoggerFrom(c)
	if len(h.webhookSecret) > 0 {
		if !validSignature(h.webhookSecret, body, c.GetHeader(HeaderSignature)) {
			lg.Warn().Msg("payment callback rejected: bad signature")
			fail(c, http.StatusUnauthorized, ErrCodeInvalidSignature)
			return
		}
	} else {
		lg.Warn().Msg("payment callback accepted unverified: no webhook secret configured")
	}

	var req PaymentCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest)
		return
	}
	res, err := h.payments.Callback(c.Request.Context(), services.CallbackInput{
		TransactionID: req.TransactionID,
		Status:        req.Status,
		UserID:        req.UserID,
		Method:        req.Method,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	lg.Info().
		Str("transaction_id", req.TransactionID).
		Bool("already_processed", res.AlreadyProcessed).
		Msg("payment callback processed")
	ok(c, http.StatusOK, CallbackResponse{Success: true, AlreadyProcessed: res.AlreadyProcessed})
}

// CancelPremium godoc
// @ID          cancelPremium
// @Summary     Cancel premium
// @Tags        Payments
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.SuccessResponse
// @Router      /payments/cancel [post]
func (h *Handlers) CancelPremium(c *gin.Context) {
	if err := h.payments.Cancel(c.Request.Context(), userID(c)); err != nil {
		failErr(c, err)
		return
	}
	succeeded(c)
}

// SubscriptionStatus godoc
// @ID          subscriptionStatus
// @Summary     Premium status
// @Tags        Payments
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.SubscriptionResponse
// @Router      /payments/status [get]
func (h *Handlers) SubscriptionStatus(c *gin.Context) {
	st, err := h.payments.Status(c.Request.Context(), userID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SubscriptionResponse{Success: true, Subscription: st})
}

// validSignature compares sig against base64(HMAC-SHA256(body)) in
// constant time.
func validSignature(secret, body []byte, sig string) bool {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, mac(secret, body))
}

func mac(secret, body []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write(body)
	return m.Sum(nil)
}
