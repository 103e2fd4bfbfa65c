package seller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/paygate/internal/money"
	"github.com/fkhayef/paygate/pkg/response"
)

// Handler handles HTTP requests for seller profile operations
type Handler struct {
	service *Service
}

// NewHandler creates a new seller handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for seller endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Put("/{id}/fee", h.UpdateFee)
	r.Put("/{id}/payout", h.UpdatePayout)
	r.Put("/{id}/notifications", h.UpdateNotifications)

	return r
}

// Create handles POST /sellers
// @Summary      Register a seller
// @Description  Register a new seller at the platform's default fee rate
// @Tags         sellers
// @Accept       json
// @Produce      json
// @Param        request body CreateSellerRequest true "Seller registration request"
// @Success      201 {object} response.APIResponse{data=SellerResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Router       /sellers [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSellerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	seller, err := h.service.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyInUse) {
			response.Conflict(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to create seller")
		return
	}

	response.JSON(w, http.StatusCreated, seller.ToResponse())
}

// GetByID handles GET /sellers/{id}
// @Summary      Get seller by ID
// @Description  Get a single seller profile by ID
// @Tags         sellers
// @Produce      json
// @Param        id path int true "Seller ID"
// @Success      200 {object} response.APIResponse{data=SellerResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /sellers/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid seller ID")
		return
	}

	seller, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSellerNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get seller")
		return
	}

	response.JSON(w, http.StatusOK, seller.ToResponse())
}

// UpdateFee handles PUT /sellers/{id}/fee
// @Summary      Update fee rate
// @Description  Change the seller's current fee rate; recorded sales keep their snapshots
// @Tags         sellers
// @Accept       json
// @Produce      json
// @Param        id path int true "Seller ID"
// @Param        request body UpdateFeeRequest true "Fee update request"
// @Success      200 {object} response.APIResponse{data=SellerResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /sellers/{id}/fee [put]
func (h *Handler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid seller ID")
		return
	}

	var req UpdateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	seller, err := h.service.UpdateFee(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, money.ErrInvalidFeePercent):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrSellerNotFound):
			response.NotFound(w, err.Error())
		default:
			response.InternalError(w, "Failed to update fee")
		}
		return
	}

	response.JSON(w, http.StatusOK, seller.ToResponse())
}

// UpdatePayout handles PUT /sellers/{id}/payout
// @Summary      Update payout method
// @Description  Set the payout destination required before withdrawals
// @Tags         sellers
// @Accept       json
// @Produce      json
// @Param        id path int true "Seller ID"
// @Param        request body UpdatePayoutRequest true "Payout update request"
// @Success      200 {object} response.APIResponse{data=SellerResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /sellers/{id}/payout [put]
func (h *Handler) UpdatePayout(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid seller ID")
		return
	}

	var req UpdatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	seller, err := h.service.UpdatePayout(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingPayout):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrSellerNotFound):
			response.NotFound(w, err.Error())
		default:
			response.InternalError(w, "Failed to update payout method")
		}
		return
	}

	response.JSON(w, http.StatusOK, seller.ToResponse())
}

// UpdateNotifications handles PUT /sellers/{id}/notifications
// @Summary      Update notification preference
// @Description  Toggle the sale-notification email
// @Tags         sellers
// @Accept       json
// @Produce      json
// @Param        id path int true "Seller ID"
// @Param        request body UpdateNotificationsRequest true "Notification preference"
// @Success      200 {object} response.APIResponse{data=SellerResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /sellers/{id}/notifications [put]
func (h *Handler) UpdateNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid seller ID")
		return
	}

	var req UpdateNotificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	seller, err := h.service.UpdateNotifications(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, ErrSellerNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to update notification preference")
		return
	}

	response.JSON(w, http.StatusOK, seller.ToResponse())
}
