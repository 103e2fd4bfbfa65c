package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/paygate/pkg/middleware"
	"github.com/fkhayef/paygate/pkg/response"
)

// Handler handles HTTP requests for wallet, stats and unlock operations
type Handler struct {
	service *Service
}

// NewHandler creates a new ledger handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// WalletRoutes returns the router for wallet endpoints
func (h *Handler) WalletRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetWallet)
	r.Get("/activity", h.ListWalletActivity)
	r.Post("/withdrawals", h.Withdraw)
	r.Post("/reconcile", h.Reconcile)

	return r
}

// LinkRoutes returns the router for link stats and click endpoints
func (h *Handler) LinkRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}/stats", h.GetLinkStats)
	r.Get("/{id}/activity", h.ListLinkActivity)
	r.Post("/{id}/clicks", h.RecordClick)

	return r
}

// PurchaseRoutes returns the router for the unlock-check endpoint
func (h *Handler) PurchaseRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{paymentId}", h.CheckUnlock)

	return r
}

// GetWallet handles GET /wallet
// @Summary      Get wallet balance
// @Description  Get the authenticated seller's available funds and payout state
// @Tags         wallet
// @Produce      json
// @Success      200 {object} response.APIResponse{data=WalletResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /wallet [get]
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.GetSellerID(r.Context())
	if !ok {
		response.Unauthorized(w, "Seller authentication required")
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), sellerID)
	if err != nil {
		if errors.Is(err, ErrSellerNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get wallet")
		return
	}

	response.JSON(w, http.StatusOK, wallet.ToResponse())
}

// ListWalletActivity handles GET /wallet/activity
// @Summary      List wallet activity
// @Description  List the authenticated seller's ledger activity in a date range
// @Tags         wallet
// @Produce      json
// @Param        from query string false "Range start (RFC3339)"
// @Param        to query string false "Range end (RFC3339)"
// @Param        page query int false "Page number"
// @Param        per_page query int false "Items per page"
// @Success      200 {object} response.APIResponse{data=[]ActivityResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /wallet/activity [get]
func (h *Handler) ListWalletActivity(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.GetSellerID(r.Context())
	if !ok {
		response.Unauthorized(w, "Seller authentication required")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		response.BadRequest(w, "Invalid date range")
		return
	}
	page, perPage := parsePagination(r)

	activities, total, err := h.service.ListSellerActivity(r.Context(), sellerID, from, to, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list activity")
		return
	}

	response.JSONWithMeta(w, http.StatusOK, toActivityResponses(activities), paginationMeta(page, perPage, total))
}

// Withdraw handles POST /wallet/withdrawals
// @Summary      Request a withdrawal
// @Description  Debit available funds and record a withdrawal activity
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request body WithdrawRequest true "Withdrawal request"
// @Success      201 {object} response.APIResponse{data=ActivityResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /wallet/withdrawals [post]
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.GetSellerID(r.Context())
	if !ok {
		response.Unauthorized(w, "Seller authentication required")
		return
	}

	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	activity, err := h.service.RecordWithdrawal(r.Context(), sellerID, req.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, err.Error())
		case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrWalletNotConfigured):
			// Expected user-facing conditions, not system errors
			response.UnprocessableEntity(w, err.Error())
		case errors.Is(err, ErrSellerNotFound):
			response.NotFound(w, err.Error())
		default:
			response.InternalError(w, "Failed to process withdrawal")
		}
		return
	}

	response.JSON(w, http.StatusCreated, activity.ToResponse())
}

// Reconcile handles POST /wallet/reconcile
// @Summary      Reconcile wallet balance
// @Description  Replay the ledger and report (optionally repair) balance drift
// @Tags         wallet
// @Accept       json
// @Produce      json
// @Param        request body ReconcileRequest false "Reconciliation options"
// @Success      200 {object} response.APIResponse{data=ReconcileReport}
// @Failure      404 {object} response.APIResponse
// @Router       /wallet/reconcile [post]
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.GetSellerID(r.Context())
	if !ok {
		response.Unauthorized(w, "Seller authentication required")
		return
	}

	var req ReconcileRequest
	if r.Body != nil {
		// Empty body means report-only
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	report, err := h.service.Reconcile(r.Context(), sellerID, req.Repair)
	if err != nil {
		if errors.Is(err, ErrSellerNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to reconcile wallet")
		return
	}

	response.JSON(w, http.StatusOK, report)
}

// GetLinkStats handles GET /links/{id}/stats
// @Summary      Get link stats
// @Description  Get a link's click, sale and earnings counters
// @Tags         links
// @Produce      json
// @Param        id path int true "Link ID"
// @Success      200 {object} response.APIResponse{data=LinkStatsResponse}
// @Failure      404 {object} response.APIResponse
// @Router       /links/{id}/stats [get]
func (h *Handler) GetLinkStats(w http.ResponseWriter, r *http.Request) {
	linkID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid link ID")
		return
	}

	stats, err := h.service.GetLinkStats(r.Context(), linkID)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to get link stats")
		return
	}

	response.JSON(w, http.StatusOK, stats.ToResponse())
}

// ListLinkActivity handles GET /links/{id}/activity
// @Summary      List link activity
// @Description  List a link's ledger activity in a date range
// @Tags         links
// @Produce      json
// @Param        id path int true "Link ID"
// @Param        from query string false "Range start (RFC3339)"
// @Param        to query string false "Range end (RFC3339)"
// @Success      200 {object} response.APIResponse{data=[]ActivityResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /links/{id}/activity [get]
func (h *Handler) ListLinkActivity(w http.ResponseWriter, r *http.Request) {
	linkID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid link ID")
		return
	}

	from, to, err := parseRange(r)
	if err != nil {
		response.BadRequest(w, "Invalid date range")
		return
	}
	page, perPage := parsePagination(r)

	activities, total, err := h.service.ListLinkActivity(r.Context(), linkID, from, to, page, perPage)
	if err != nil {
		response.InternalError(w, "Failed to list activity")
		return
	}

	response.JSONWithMeta(w, http.StatusOK, toActivityResponses(activities), paginationMeta(page, perPage, total))
}

// RecordClick handles POST /links/{id}/clicks
// @Summary      Record a click
// @Description  Increment a link's click counter
// @Tags         links
// @Produce      json
// @Param        id path int true "Link ID"
// @Success      204 "No Content"
// @Failure      404 {object} response.APIResponse
// @Router       /links/{id}/clicks [post]
func (h *Handler) RecordClick(w http.ResponseWriter, r *http.Request) {
	linkID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid link ID")
		return
	}

	if err := h.service.RecordClick(r.Context(), linkID); err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			response.NotFound(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to record click")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CheckUnlock handles GET /purchases/{paymentId}
// @Summary      Check purchase unlock
// @Description  Report whether an external payment has been recorded; the buyer page polls this after checkout
// @Tags         purchases
// @Produce      json
// @Param        paymentId path string true "External payment ID"
// @Success      200 {object} response.APIResponse{data=UnlockResponse}
// @Router       /purchases/{paymentId} [get]
func (h *Handler) CheckUnlock(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")

	activity, err := h.service.CheckUnlock(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, ErrMissingPaymentID) {
			response.BadRequest(w, err.Error())
			return
		}
		response.InternalError(w, "Failed to check purchase")
		return
	}

	unlock := &UnlockResponse{Unlocked: activity != nil}
	if activity != nil {
		unlock.Purchase = activity.ToResponse()
	}

	response.JSON(w, http.StatusOK, unlock)
}

func toActivityResponses(activities []*Activity) []*ActivityResponse {
	responses := make([]*ActivityResponse, len(activities))
	for i, a := range activities {
		responses[i] = a.ToResponse()
	}
	return responses
}

func parsePagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return page, perPage
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		to = parsed
	}
	return from, to, nil
}

func paginationMeta(page, perPage, total int) *response.Meta {
	return &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: (total + perPage - 1) / perPage,
	}
}
