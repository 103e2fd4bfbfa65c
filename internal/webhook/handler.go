package webhook

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fkhayef/paygate/pkg/response"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body
const SignatureHeader = "X-Webhook-Signature"

// maxBodyBytes bounds webhook payload size
const maxBodyBytes = 1 << 20

// Handler handles HTTP requests from the payment processor
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a new webhook handler
func NewHandler(dispatcher *Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

// Routes returns the router for webhook endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/payment", h.HandlePayment)

	return r
}

// webhookAck is the body returned for acknowledged deliveries
type webhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}

// HandlePayment handles POST /webhooks/payment
// @Summary      Payment processor webhook
// @Description  Verify, deduplicate and settle a payment confirmation event
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        X-Webhook-Signature header string true "Hex HMAC-SHA256 of the body"
// @Success      200 {object} response.APIResponse
// @Failure      401 {object} response.APIResponse
// @Failure      503 {object} response.APIResponse
// @Router       /webhooks/payment [post]
func (h *Handler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	deliveryID := uuid.NewString()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Printf("webhook delivery=%s failed to read body: %v", deliveryID, err)
		response.BadRequest(w, "Failed to read request body")
		return
	}

	outcome, err := h.dispatcher.Process(r.Context(), body, r.Header.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			// Security-relevant: an unauthentic caller is probing the endpoint
			log.Printf("webhook delivery=%s rejected: %v", deliveryID, err)
			response.Unauthorized(w, "Invalid webhook signature")
		case errors.Is(err, ErrMalformedEvent), errors.Is(err, ErrUnknownLink):
			// Terminal conditions: acknowledge so the processor stops
			// redelivering an event that can never be applied
			log.Printf("webhook delivery=%s dropped: %v", deliveryID, err)
			response.JSON(w, http.StatusOK, webhookAck{Received: true, Status: "dropped"})
		default:
			// Transient ledger failure: fail the delivery so the processor
			// redelivers; settlement is idempotent under redelivery
			log.Printf("webhook delivery=%s transient failure: %v", deliveryID, err)
			response.ServiceUnavailable(w, "Settlement temporarily unavailable")
		}
		return
	}

	log.Printf("webhook delivery=%s event=%s status=%s", deliveryID, outcome.EventID, outcome.Status)
	response.JSON(w, http.StatusOK, webhookAck{Received: true, Status: outcome.Status})
}
