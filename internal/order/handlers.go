package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/foodtruck-orders/internal/common"
	"github.com/noah-isme/foodtruck-orders/internal/promo"
)

// Handler exposes the order endpoints.
type Handler struct {
	Svc   *Service
	Promo *promo.Service
}

type previewRequest struct {
	FoodtruckID   string `json:"foodtruckId" validate:"required"`
	Code          string `json:"code" validate:"required"`
	SubtotalCents int64  `json:"subtotalCents" validate:"min=0"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
}

// Create handles POST /orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Corps de requête invalide", nil)
		return
	}
	out, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// Get handles GET /orders/{orderId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	orderID := chi.URLParam(r, "orderId")
	if _, err := uuid.Parse(orderID); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Identifiant de commande invalide", nil)
		return
	}
	ord, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ord})
}

// PreviewPromo handles POST /promo-codes/preview.
func (h *Handler) PreviewPromo(w http.ResponseWriter, r *http.Request) {
	if h.Promo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "promo service not configured", nil)
		return
	}
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "Corps de requête invalide", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.writeError(w, r, fieldError(verrs[0]))
			return
		}
		h.writeError(w, r, err)
		return
	}
	out, err := h.Promo.Preview(r.Context(), req.FoodtruckID, req.Code, req.SubtotalCents, strings.TrimSpace(req.CustomerEmail))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("order request failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "Erreur interne du serveur", nil)
}
