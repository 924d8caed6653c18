package controller

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/commons"
	"storefront/internal/delivery/service"
	"storefront/internal/domain"
	apperrors "storefront/internal/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DeliveryService interface {
	CalculateCharge(ctx context.Context, pincode string, subtotal decimal.Decimal) (*service.Quote, error)
	Settings(ctx context.Context) (*domain.DeliverySettings, error)
	UpdateSettings(ctx context.Context, s domain.DeliverySettings) (*domain.DeliverySettings, error)
	ImportPincodes(ctx context.Context, locs []domain.Location) (int, error)
}

type DeliveryController struct {
	svc    DeliveryService
	logger *zap.Logger
}

func NewDeliveryController(svc DeliveryService, logger *zap.Logger) *DeliveryController {
	return &DeliveryController{svc: svc, logger: logger}
}

type quoteResponse struct {
	TraceID        string          `json:"traceId"`
	Pincode        string          `json:"pincode"`
	Charge         decimal.Decimal `json:"charge"`
	IsFreeShipping bool            `json:"isFreeShipping"`
	Zone           string          `json:"zone"`
	EstimatedDays  int             `json:"estimatedDays"`
	City           string          `json:"city,omitempty"`
	State          string          `json:"state,omitempty"`
}

type settingsPayload struct {
	BusinessPincode        string          `json:"businessPincode"`
	BusinessCity           string          `json:"businessCity"`
	BusinessState          string          `json:"businessState"`
	BusinessLatitude       float64         `json:"businessLatitude"`
	BusinessLongitude      float64         `json:"businessLongitude"`
	LocalDeliveryCharge    decimal.Decimal `json:"localDeliveryCharge"`
	CityDeliveryCharge     decimal.Decimal `json:"cityDeliveryCharge"`
	StateDeliveryCharge    decimal.Decimal `json:"stateDeliveryCharge"`
	NationalDeliveryCharge decimal.Decimal `json:"nationalDeliveryCharge"`
	FreeShippingEnabled    bool            `json:"freeShippingEnabled"`
	FreeShippingThreshold  decimal.Decimal `json:"freeShippingThreshold"`
	UpdatedAt              *time.Time      `json:"updatedAt,omitempty"`
}

func toSettingsPayload(s *domain.DeliverySettings) settingsPayload {
	p := settingsPayload{
		BusinessPincode:        s.BusinessPincode,
		BusinessCity:           s.BusinessCity,
		BusinessState:          s.BusinessState,
		BusinessLatitude:       s.BusinessLatitude,
		BusinessLongitude:      s.BusinessLongitude,
		LocalDeliveryCharge:    s.LocalDeliveryCharge,
		CityDeliveryCharge:     s.CityDeliveryCharge,
		StateDeliveryCharge:    s.StateDeliveryCharge,
		NationalDeliveryCharge: s.NationalDeliveryCharge,
		FreeShippingEnabled:    s.FreeShippingEnabled,
		FreeShippingThreshold:  s.FreeShippingThreshold,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		p.UpdatedAt = &t
	}
	return p
}

// Quote handles GET /delivery/quote?pincode=400001&subtotal=499.00
func (c *DeliveryController) Quote(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	subtotal, err := decimal.NewFromString(r.URL.Query().Get("subtotal"))
	if err != nil || subtotal.IsNegative() {
		commons.WriteError(w, traceID, apperrors.NewValidationError("invalid subtotal", apperrors.ValidationDetail{
			Field:   "subtotal",
			Message: "subtotal must be a non-negative decimal",
		}), c.logger)
		return
	}

	q, err := c.svc.CalculateCharge(r.Context(), r.URL.Query().Get("pincode"), subtotal)
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, quoteResponse{
		TraceID:        traceID,
		Pincode:        q.Pincode,
		Charge:         q.Charge,
		IsFreeShipping: q.IsFreeShipping,
		Zone:           string(q.Zone),
		EstimatedDays:  q.EstimatedDays,
		City:           q.Location.City,
		State:          q.Location.State,
	}, c.logger)
}

func (c *DeliveryController) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := c.svc.Settings(r.Context())
	if err != nil {
		commons.WriteError(w, commons.NewTraceID(), err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toSettingsPayload(s), c.logger)
}

func (c *DeliveryController) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req settingsPayload
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	updated, err := c.svc.UpdateSettings(r.Context(), domain.DeliverySettings{
		BusinessPincode:        req.BusinessPincode,
		BusinessCity:           req.BusinessCity,
		BusinessState:          req.BusinessState,
		BusinessLatitude:       req.BusinessLatitude,
		BusinessLongitude:      req.BusinessLongitude,
		LocalDeliveryCharge:    req.LocalDeliveryCharge,
		CityDeliveryCharge:     req.CityDeliveryCharge,
		StateDeliveryCharge:    req.StateDeliveryCharge,
		NationalDeliveryCharge: req.NationalDeliveryCharge,
		FreeShippingEnabled:    req.FreeShippingEnabled,
		FreeShippingThreshold:  req.FreeShippingThreshold,
	})
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, toSettingsPayload(updated), c.logger)
}

type pincodePayload struct {
	Pincode   string   `json:"pincode"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type importPincodesRequest struct {
	Pincodes []pincodePayload `json:"pincodes"`
}

type importPincodesResponse struct {
	TraceID  string `json:"traceId"`
	Imported int    `json:"imported"`
}

// ImportPincodes loads rows into the pincode reference table. The batch is
// rejected as a whole when any row is invalid.
func (c *DeliveryController) ImportPincodes(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()

	var req importPincodesRequest
	if !commons.DecodeJSON(w, r, traceID, &req, c.logger) {
		return
	}

	locs := make([]domain.Location, len(req.Pincodes))
	for i, p := range req.Pincodes {
		locs[i] = domain.Location{
			Pincode:   p.Pincode,
			City:      p.City,
			State:     p.State,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
		}
	}

	n, err := c.svc.ImportPincodes(r.Context(), locs)
	if err != nil {
		commons.WriteError(w, traceID, err, c.logger)
		return
	}
	commons.WriteJSON(w, http.StatusOK, importPincodesResponse{TraceID: traceID, Imported: n}, c.logger)
}
