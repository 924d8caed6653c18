package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
	"storefront/internal/infrastructure/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// localRadiusKm is the distance from the business origin, within the same
// city, that still counts as the local zone.
const localRadiusKm = 10.0

var pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.DeliverySettings, error)
	Save(ctx context.Context, s *domain.DeliverySettings) error
}

// PincodeStore persists rows of the pincode reference table.
type PincodeStore interface {
	Upsert(ctx context.Context, loc domain.Location) error
}

type Quote struct {
	Pincode        string
	Charge         decimal.Decimal
	IsFreeShipping bool
	Zone           domain.Zone
	EstimatedDays  int
	Location       domain.Location
}

type DeliveryService struct {
	settingsRepo SettingsRepository
	locator      Locator
	pincodes     PincodeStore
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cacheTTL     time.Duration
	now          func() time.Time

	mu        sync.RWMutex
	cached    *domain.DeliverySettings
	expiresAt time.Time
}

func NewDeliveryService(
	settingsRepo SettingsRepository,
	locator Locator,
	pincodes PincodeStore,
	m *metrics.Metrics,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *DeliveryService {
	return &DeliveryService{
		settingsRepo: settingsRepo,
		locator:      locator,
		pincodes:     pincodes,
		metrics:      m,
		logger:       logger,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

func ValidatePincode(pincode string) error {
	if !pincodePattern.MatchString(pincode) {
		return apperrors.NewInvalidPincodeError(pincode)
	}
	return nil
}

// CalculateCharge prices delivery of an order with the given subtotal to
// pincode. Free shipping at or above the threshold overrides zone pricing.
func (s *DeliveryService) CalculateCharge(ctx context.Context, pincode string, subtotal decimal.Decimal) (*Quote, error) {
	pincode = strings.TrimSpace(pincode)
	if err := ValidatePincode(pincode); err != nil {
		return nil, err
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}

	loc := s.locate(ctx, pincode, settings)
	zone := ResolveZone(settings, loc)

	quote := &Quote{
		Pincode:       pincode,
		Zone:          zone,
		Charge:        domain.RoundMoney(settings.ChargeFor(zone)),
		EstimatedDays: zone.EstimatedDays(),
		Location:      loc,
	}
	if settings.FreeShippingEnabled && subtotal.GreaterThanOrEqual(settings.FreeShippingThreshold) {
		quote.Zone = domain.ZoneFreeShipping
		quote.Charge = decimal.Zero
		quote.IsFreeShipping = true
	}

	s.metrics.DeliveryQuoted(string(quote.Zone))
	return quote, nil
}

func (s *DeliveryService) locate(ctx context.Context, pincode string, settings *domain.DeliverySettings) domain.Location {
	if s.locator != nil {
		loc, err := s.locator.Locate(ctx, pincode)
		if err == nil && loc != nil {
			return *loc
		}
		s.logger.Warn("pincode lookup failed, using approximate location",
			zap.String("pincode", pincode), zap.Error(err))
	}
	return ApproximateLocation(pincode, settings)
}

// ResolveZone classifies loc relative to the business origin.
func ResolveZone(settings *domain.DeliverySettings, loc domain.Location) domain.Zone {
	if domain.SamePlace(loc.City, settings.BusinessCity) {
		if loc.HasCoordinates() {
			d := domain.HaversineKm(settings.BusinessLatitude, settings.BusinessLongitude, *loc.Latitude, *loc.Longitude)
			if d <= localRadiusKm {
				return domain.ZoneLocal
			}
		}
		return domain.ZoneCity
	}
	if domain.SamePlace(loc.State, settings.BusinessState) {
		return domain.ZoneState
	}
	return domain.ZoneNational
}

// Settings returns the delivery settings, served from the instance cache
// until the TTL lapses.
func (s *DeliveryService) Settings(ctx context.Context) (*domain.DeliverySettings, error) {
	now := s.now()

	s.mu.RLock()
	if s.cached != nil && now.Before(s.expiresAt) {
		settings := *s.cached
		s.mu.RUnlock()
		return &settings, nil
	}
	s.mu.RUnlock()

	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); !ok {
			return nil, err
		}
		s.logger.Warn("delivery settings not configured, using defaults")
		settings = DefaultSettings()
	}

	s.mu.Lock()
	s.cached = settings
	s.expiresAt = now.Add(s.cacheTTL)
	s.mu.Unlock()

	out := *settings
	return &out, nil
}

func (s *DeliveryService) ClearCache() {
	s.mu.Lock()
	s.cached = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// UpdateSettings persists new settings and drops the cached copy so the next
// quote sees them immediately.
func (s *DeliveryService) UpdateSettings(ctx context.Context, settings domain.DeliverySettings) (*domain.DeliverySettings, error) {
	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	settings.UpdatedAt = s.now().UTC()
	if err := s.settingsRepo.Save(ctx, &settings); err != nil {
		return nil, err
	}
	s.ClearCache()

	if settings.BusinessPincode != "" {
		lat, lng := settings.BusinessLatitude, settings.BusinessLongitude
		origin := domain.Location{
			Pincode:   settings.BusinessPincode,
			City:      settings.BusinessCity,
			State:     settings.BusinessState,
			Latitude:  &lat,
			Longitude: &lng,
		}
		if err := s.storePincode(ctx, origin); err != nil {
			s.logger.Warn("failed to register business pincode",
				zap.String("pincode", settings.BusinessPincode), zap.Error(err))
		}
	}

	s.logger.Info("delivery settings updated",
		zap.String("businessCity", settings.BusinessCity),
		zap.Bool("freeShippingEnabled", settings.FreeShippingEnabled),
	)
	return &settings, nil
}

// ImportPincodes validates the whole batch before writing any row, then
// upserts each location and drops its cached lookup. It returns how many rows
// were written.
func (s *DeliveryService) ImportPincodes(ctx context.Context, locs []domain.Location) (int, error) {
	if err := validateLocations(locs); err != nil {
		return 0, err
	}
	if s.pincodes == nil {
		return 0, apperrors.NewInternalError("pincode directory not configured", nil)
	}

	for i, loc := range locs {
		loc.Approximate = false
		if err := s.storePincode(ctx, loc); err != nil {
			return i, fmt.Errorf("importing pincode %s: %w", loc.Pincode, err)
		}
	}

	s.logger.Info("pincodes imported", zap.Int("count", len(locs)))
	return len(locs), nil
}

func (s *DeliveryService) storePincode(ctx context.Context, loc domain.Location) error {
	if s.pincodes == nil {
		return nil
	}
	if err := s.pincodes.Upsert(ctx, loc); err != nil {
		return err
	}
	if ev, ok := s.locator.(LocationEvicter); ok {
		if err := ev.Evict(ctx, loc.Pincode); err != nil {
			s.logger.Warn("failed to evict cached location", zap.String("pincode", loc.Pincode), zap.Error(err))
		}
	}
	return nil
}

// DefaultSettings is used until an admin saves the first settings row.
func DefaultSettings() *domain.DeliverySettings {
	return &domain.DeliverySettings{
		BusinessPincode:        "400001",
		BusinessCity:           "Mumbai",
		BusinessState:          "Maharashtra",
		BusinessLatitude:       18.9398,
		BusinessLongitude:      72.8355,
		LocalDeliveryCharge:    decimal.NewFromInt(40),
		CityDeliveryCharge:     decimal.NewFromInt(60),
		StateDeliveryCharge:    decimal.NewFromInt(80),
		NationalDeliveryCharge: decimal.NewFromInt(120),
		FreeShippingEnabled:    true,
		FreeShippingThreshold:  decimal.NewFromInt(999),
	}
}

func validateSettings(s domain.DeliverySettings) error {
	var details []apperrors.ValidationDetail
	add := func(field, msg string) {
		details = append(details, apperrors.ValidationDetail{Field: field, Message: msg})
	}

	if s.BusinessPincode != "" && !pincodePattern.MatchString(s.BusinessPincode) {
		add("businessPincode", "businessPincode must be 6 digits")
	}
	if strings.TrimSpace(s.BusinessCity) == "" {
		add("businessCity", "businessCity is required")
	}
	if strings.TrimSpace(s.BusinessState) == "" {
		add("businessState", "businessState is required")
	}
	if s.BusinessLatitude < -90 || s.BusinessLatitude > 90 {
		add("businessLatitude", "businessLatitude must be between -90 and 90")
	}
	if s.BusinessLongitude < -180 || s.BusinessLongitude > 180 {
		add("businessLongitude", "businessLongitude must be between -180 and 180")
	}

	charges := []struct {
		field string
		value decimal.Decimal
	}{
		{"localDeliveryCharge", s.LocalDeliveryCharge},
		{"cityDeliveryCharge", s.CityDeliveryCharge},
		{"stateDeliveryCharge", s.StateDeliveryCharge},
		{"nationalDeliveryCharge", s.NationalDeliveryCharge},
	}
	for _, c := range charges {
		if !c.value.IsPositive() {
			add(c.field, c.field+" must be greater than 0")
		}
	}
	if s.FreeShippingEnabled && !s.FreeShippingThreshold.IsPositive() {
		add("freeShippingThreshold", "freeShippingThreshold must be greater than 0 when free shipping is enabled")
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func validateLocations(locs []domain.Location) error {
	if len(locs) == 0 {
		return apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
			Field:   "pincodes",
			Message: "at least one pincode is required",
		})
	}

	var details []apperrors.ValidationDetail
	seen := make(map[string]bool, len(locs))
	for i, loc := range locs {
		field := fmt.Sprintf("pincodes[%d]", i)
		add := func(name, msg string) {
			details = append(details, apperrors.ValidationDetail{Field: field + "." + name, Message: msg})
		}

		if !pincodePattern.MatchString(loc.Pincode) {
			add("pincode", "pincode must be 6 digits")
		} else if seen[loc.Pincode] {
			add("pincode", "duplicate pincode "+loc.Pincode)
		}
		seen[loc.Pincode] = true

		if strings.TrimSpace(loc.City) == "" {
			add("city", "city is required")
		}
		if strings.TrimSpace(loc.State) == "" {
			add("state", "state is required")
		}
		if (loc.Latitude == nil) != (loc.Longitude == nil) {
			add("latitude", "latitude and longitude must be given together")
		}
		if loc.Latitude != nil && (*loc.Latitude < -90 || *loc.Latitude > 90) {
			add("latitude", "latitude must be between -90 and 90")
		}
		if loc.Longitude != nil && (*loc.Longitude < -180 || *loc.Longitude > 180) {
			add("longitude", "longitude must be between -180 and 180")
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}
