package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
	apperrors "storefront/internal/errors"
)

type mockSettingsRepository struct {
	GetFunc  func(ctx context.Context) (*domain.DeliverySettings, error)
	SaveFunc func(ctx context.Context, s *domain.DeliverySettings) error
}

func (m *mockSettingsRepository) Get(ctx context.Context) (*domain.DeliverySettings, error) {
	return m.GetFunc(ctx)
}

func (m *mockSettingsRepository) Save(ctx context.Context, s *domain.DeliverySettings) error {
	return m.SaveFunc(ctx, s)
}

type mockLocator struct {
	LocateFunc func(ctx context.Context, pincode string) (*domain.Location, error)
}

func (m *mockLocator) Locate(ctx context.Context, pincode string) (*domain.Location, error) {
	return m.LocateFunc(ctx, pincode)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func floatPtr(v float64) *float64 {
	return &v
}

func mumbaiSettings() *domain.DeliverySettings {
	return &domain.DeliverySettings{
		ID:                     1,
		BusinessPincode:        "400001",
		BusinessCity:           "Mumbai",
		BusinessState:          "Maharashtra",
		BusinessLatitude:       18.9398,
		BusinessLongitude:      72.8355,
		LocalDeliveryCharge:    dec("30"),
		CityDeliveryCharge:     dec("50"),
		StateDeliveryCharge:    dec("80"),
		NationalDeliveryCharge: dec("120"),
		FreeShippingEnabled:    true,
		FreeShippingThreshold:  dec("999"),
	}
}

var knownPincodes = map[string]domain.Location{
	"400001": {Pincode: "400001", City: "Mumbai", State: "Maharashtra", Latitude: floatPtr(18.9388), Longitude: floatPtr(72.8354)},
	"400104": {Pincode: "400104", City: "Mumbai", State: "Maharashtra", Latitude: floatPtr(19.1663), Longitude: floatPtr(72.8526)},
	"411001": {Pincode: "411001", City: "Pune", State: "Maharashtra"},
	"560001": {Pincode: "560001", City: "Bengaluru", State: "Karnataka"},
}

func tableLocator() *mockLocator {
	return &mockLocator{
		LocateFunc: func(ctx context.Context, pincode string) (*domain.Location, error) {
			loc, ok := knownPincodes[pincode]
			if !ok {
				return nil, apperrors.NewNotFoundError("pincode not found")
			}
			return &loc, nil
		},
	}
}

func newTestDeliveryService(settings *domain.DeliverySettings, locator Locator) (*DeliveryService, *atomic.Int32) {
	calls := &atomic.Int32{}
	repo := &mockSettingsRepository{
		GetFunc: func(ctx context.Context) (*domain.DeliverySettings, error) {
			calls.Add(1)
			s := *settings
			return &s, nil
		},
		SaveFunc: func(ctx context.Context, s *domain.DeliverySettings) error {
			*settings = *s
			return nil
		},
	}
	return NewDeliveryService(repo, locator, nil, nil, zap.NewNop(), 5*time.Minute), calls
}

func TestCalculateCharge_InvalidPincode(t *testing.T) {
	s, _ := newTestDeliveryService(mumbaiSettings(), tableLocator())

	for _, pin := range []string{"", "40001", "4000011", "40000a", "40 001"} {
		_, err := s.CalculateCharge(context.Background(), pin, dec("100"))
		_, ok := apperrors.IsInvalidPincodeError(err)
		assert.True(t, ok, "pincode %q", pin)
	}
}

func TestCalculateCharge_Zones(t *testing.T) {
	tests := []struct {
		pincode string
		zone    domain.Zone
		charge  string
	}{
		{"400001", domain.ZoneLocal, "30"},
		{"400104", domain.ZoneCity, "50"},
		{"411001", domain.ZoneState, "80"},
		{"560001", domain.ZoneNational, "120"},
	}

	s, _ := newTestDeliveryService(mumbaiSettings(), tableLocator())
	for _, tt := range tests {
		t.Run(tt.pincode, func(t *testing.T) {
			q, err := s.CalculateCharge(context.Background(), tt.pincode, dec("500"))
			require.NoError(t, err)
			assert.Equal(t, tt.zone, q.Zone)
			assert.True(t, dec(tt.charge).Equal(q.Charge), "got %s", q.Charge)
			assert.False(t, q.IsFreeShipping)
			assert.Equal(t, tt.zone.EstimatedDays(), q.EstimatedDays)
		})
	}
}

func TestCalculateCharge_SameCityWithoutCoordinatesIsCity(t *testing.T) {
	locator := &mockLocator{
		LocateFunc: func(ctx context.Context, pincode string) (*domain.Location, error) {
			return &domain.Location{Pincode: pincode, City: "mumbai", State: "Maharashtra"}, nil
		},
	}
	s, _ := newTestDeliveryService(mumbaiSettings(), locator)

	q, err := s.CalculateCharge(context.Background(), "400001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneCity, q.Zone)
}

func TestCalculateCharge_FreeShippingBoundary(t *testing.T) {
	s, _ := newTestDeliveryService(mumbaiSettings(), tableLocator())

	q, err := s.CalculateCharge(context.Background(), "560001", dec("999"))
	require.NoError(t, err)
	assert.True(t, q.IsFreeShipping)
	assert.True(t, q.Charge.IsZero())
	assert.Equal(t, domain.ZoneFreeShipping, q.Zone)

	q, err = s.CalculateCharge(context.Background(), "560001", dec("998.99"))
	require.NoError(t, err)
	assert.False(t, q.IsFreeShipping)
	assert.True(t, q.Charge.IsPositive())
}

func TestCalculateCharge_FreeShippingDisabled(t *testing.T) {
	settings := mumbaiSettings()
	settings.FreeShippingEnabled = false
	s, _ := newTestDeliveryService(settings, tableLocator())

	q, err := s.CalculateCharge(context.Background(), "400001", dec("100000"))
	require.NoError(t, err)
	assert.False(t, q.IsFreeShipping)
	assert.Equal(t, domain.ZoneLocal, q.Zone)
}

func TestCalculateCharge_BusinessCityExample(t *testing.T) {
	s, _ := newTestDeliveryService(mumbaiSettings(), tableLocator())

	q, err := s.CalculateCharge(context.Background(), "400001", dec("500"))
	require.NoError(t, err)
	assert.Contains(t, []domain.Zone{domain.ZoneLocal, domain.ZoneCity}, q.Zone)
	assert.True(t, q.Charge.IsPositive())

	q, err = s.CalculateCharge(context.Background(), "400001", dec("1500"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneFreeShipping, q.Zone)
	assert.True(t, q.Charge.IsZero())
}

func TestCalculateCharge_Deterministic(t *testing.T) {
	s, _ := newTestDeliveryService(mumbaiSettings(), tableLocator())

	first, err := s.CalculateCharge(context.Background(), "411001", dec("250"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		q, err := s.CalculateCharge(context.Background(), "411001", dec("250"))
		require.NoError(t, err)
		assert.Equal(t, first.Zone, q.Zone)
		assert.True(t, first.Charge.Equal(q.Charge))
	}
}

func TestCalculateCharge_LookupFailureFallsBackToApproximate(t *testing.T) {
	locator := &mockLocator{
		LocateFunc: func(ctx context.Context, pincode string) (*domain.Location, error) {
			return nil, errors.New("lookup service unavailable")
		},
	}
	s, _ := newTestDeliveryService(mumbaiSettings(), locator)

	q, err := s.CalculateCharge(context.Background(), "411038", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneState, q.Zone)
	assert.True(t, q.Location.Approximate)

	q, err = s.CalculateCharge(context.Background(), "110001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneNational, q.Zone)
}

func TestSettings_CachedUntilTTL(t *testing.T) {
	s, calls := newTestDeliveryService(mumbaiSettings(), tableLocator())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Settings(context.Background())
	require.NoError(t, err)
	_, err = s.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(5*time.Minute + time.Second)
	_, err = s.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	s.ClearCache()
	_, err = s.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSettings_DefaultsWhenNotConfigured(t *testing.T) {
	repo := &mockSettingsRepository{
		GetFunc: func(ctx context.Context) (*domain.DeliverySettings, error) {
			return nil, apperrors.NewNotFoundError("delivery settings not configured")
		},
	}
	s := NewDeliveryService(repo, tableLocator(), nil, nil, zap.NewNop(), time.Minute)

	got, err := s.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings().BusinessCity, got.BusinessCity)
}

func TestSettings_RepositoryError(t *testing.T) {
	repo := &mockSettingsRepository{
		GetFunc: func(ctx context.Context) (*domain.DeliverySettings, error) {
			return nil, errors.New("connection refused")
		},
	}
	s := NewDeliveryService(repo, tableLocator(), nil, nil, zap.NewNop(), time.Minute)

	_, err := s.CalculateCharge(context.Background(), "400001", dec("100"))
	assert.Error(t, err)
}

func TestUpdateSettings_InvalidatesCacheImmediately(t *testing.T) {
	settings := mumbaiSettings()
	s, _ := newTestDeliveryService(settings, tableLocator())

	q, err := s.CalculateCharge(context.Background(), "560001", dec("500"))
	require.NoError(t, err)
	assert.True(t, dec("120").Equal(q.Charge))

	updated := *mumbaiSettings()
	updated.NationalDeliveryCharge = dec("150")
	_, err = s.UpdateSettings(context.Background(), updated)
	require.NoError(t, err)

	q, err = s.CalculateCharge(context.Background(), "560001", dec("500"))
	require.NoError(t, err)
	assert.True(t, dec("150").Equal(q.Charge))
}

func TestUpdateSettings_Validation(t *testing.T) {
	s, _ := newTestDeliveryService(mumbaiSettings(), tableLocator())

	bad := *mumbaiSettings()
	bad.LocalDeliveryCharge = decimal.Zero
	bad.BusinessCity = ""

	_, err := s.UpdateSettings(context.Background(), bad)
	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok)
	assert.Len(t, ve.Details, 2)
}

func TestSettings_ConcurrentReadsAndClears(t *testing.T) {
	s, _ := newTestDeliveryService(mumbaiSettings(), tableLocator())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.CalculateCharge(context.Background(), "400001", dec("100"))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			s.ClearCache()
		}()
	}
	wg.Wait()
}

func TestApproximateLocation(t *testing.T) {
	loc := ApproximateLocation("411038", nil)
	assert.Equal(t, "Maharashtra", loc.State)
	assert.Empty(t, loc.City)
	assert.False(t, loc.HasCoordinates())
	assert.True(t, loc.Approximate)

	assert.Empty(t, ApproximateLocation("990001", nil).State)
}

func TestApproximateLocation_OriginDistrict(t *testing.T) {
	origin := mumbaiSettings()

	loc := ApproximateLocation("400001", origin)
	assert.Equal(t, "Mumbai", loc.City)
	require.True(t, loc.HasCoordinates())
	assert.Equal(t, origin.BusinessLatitude, *loc.Latitude)

	loc = ApproximateLocation("400104", origin)
	assert.Equal(t, "Mumbai", loc.City)
	assert.False(t, loc.HasCoordinates())

	loc = ApproximateLocation("411001", origin)
	assert.Empty(t, loc.City)
	assert.Equal(t, "Maharashtra", loc.State)

	origin.BusinessPincode = ""
	assert.Empty(t, ApproximateLocation("400001", origin).City)
}

func TestCalculateCharge_DefaultsWithEmptyPincodeTable(t *testing.T) {
	repo := &mockSettingsRepository{
		GetFunc: func(ctx context.Context) (*domain.DeliverySettings, error) {
			return nil, apperrors.NewNotFoundError("delivery settings not configured")
		},
	}
	locator := &mockLocator{
		LocateFunc: func(ctx context.Context, pincode string) (*domain.Location, error) {
			return nil, apperrors.NewNotFoundError("pincode not found")
		},
	}
	s := NewDeliveryService(repo, locator, nil, nil, zap.NewNop(), time.Minute)
	defaults := DefaultSettings()

	q, err := s.CalculateCharge(context.Background(), "400001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneLocal, q.Zone)
	assert.True(t, defaults.LocalDeliveryCharge.Equal(q.Charge), "got %s", q.Charge)

	q, err = s.CalculateCharge(context.Background(), "400104", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneCity, q.Zone)
	assert.True(t, defaults.CityDeliveryCharge.Equal(q.Charge))

	q, err = s.CalculateCharge(context.Background(), "411001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneState, q.Zone)

	q, err = s.CalculateCharge(context.Background(), "560001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneNational, q.Zone)
}

type memPincodes struct {
	mu   sync.Mutex
	rows map[string]domain.Location
	err  error
}

func newMemPincodes() *memPincodes {
	return &memPincodes{rows: map[string]domain.Location{}}
}

func (m *memPincodes) Upsert(ctx context.Context, loc domain.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[loc.Pincode] = loc
	return nil
}

func (m *memPincodes) Locate(ctx context.Context, pincode string) (*domain.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.rows[pincode]
	if !ok {
		return nil, apperrors.NewNotFoundError("pincode not found")
	}
	return &loc, nil
}

func TestImportPincodes_WritesAndEvictsCachedLookups(t *testing.T) {
	store := newMemPincodes()
	store.rows["411001"] = domain.Location{Pincode: "411001", City: "Pune", State: "Maharashtra"}
	c := newMemoryCache()
	locator := NewCachedLocator(store, c, time.Hour, zap.NewNop())

	settings := mumbaiSettings()
	repo := &mockSettingsRepository{
		GetFunc: func(ctx context.Context) (*domain.DeliverySettings, error) {
			s := *settings
			return &s, nil
		},
	}
	s := NewDeliveryService(repo, locator, store, nil, zap.NewNop(), time.Minute)

	q, err := s.CalculateCharge(context.Background(), "411001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneState, q.Zone)
	require.Contains(t, c.data, "test:pincode:411001")

	n, err := s.ImportPincodes(context.Background(), []domain.Location{
		{Pincode: "411001", City: "Mumbai", State: "Maharashtra"},
		{Pincode: "400104", City: "Mumbai", State: "Maharashtra", Latitude: floatPtr(19.1663), Longitude: floatPtr(72.8526)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotContains(t, c.data, "test:pincode:411001")
	assert.Len(t, store.rows, 2)

	q, err = s.CalculateCharge(context.Background(), "411001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneCity, q.Zone)
	assert.False(t, q.Location.Approximate)
}

func TestImportPincodes_ValidationWritesNothing(t *testing.T) {
	store := newMemPincodes()
	s := NewDeliveryService(&mockSettingsRepository{}, store, store, nil, zap.NewNop(), time.Minute)

	_, err := s.ImportPincodes(context.Background(), []domain.Location{
		{Pincode: "400001", City: "Mumbai", State: "Maharashtra"},
		{Pincode: "40001", City: "", State: "Maharashtra"},
		{Pincode: "400001", City: "Mumbai", State: "Maharashtra", Latitude: floatPtr(18.9)},
	})
	ve, ok := apperrors.IsValidationError(err)
	require.True(t, ok)
	assert.Len(t, ve.Details, 4)
	assert.Empty(t, store.rows)

	_, err = s.ImportPincodes(context.Background(), nil)
	_, ok = apperrors.IsValidationError(err)
	assert.True(t, ok)
}

func TestImportPincodes_StoreFailure(t *testing.T) {
	store := newMemPincodes()
	store.err = errors.New("connection refused")
	s := NewDeliveryService(&mockSettingsRepository{}, store, store, nil, zap.NewNop(), time.Minute)

	n, err := s.ImportPincodes(context.Background(), []domain.Location{
		{Pincode: "400001", City: "Mumbai", State: "Maharashtra"},
	})
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestUpdateSettings_RegistersBusinessPincode(t *testing.T) {
	store := newMemPincodes()
	settings := mumbaiSettings()
	repo := &mockSettingsRepository{
		GetFunc: func(ctx context.Context) (*domain.DeliverySettings, error) {
			s := *settings
			return &s, nil
		},
		SaveFunc: func(ctx context.Context, s *domain.DeliverySettings) error {
			*settings = *s
			return nil
		},
	}
	s := NewDeliveryService(repo, store, store, nil, zap.NewNop(), time.Minute)

	updated := *mumbaiSettings()
	updated.BusinessPincode = "560001"
	updated.BusinessCity = "Bengaluru"
	updated.BusinessState = "Karnataka"
	updated.BusinessLatitude = 12.9716
	updated.BusinessLongitude = 77.5946
	_, err := s.UpdateSettings(context.Background(), updated)
	require.NoError(t, err)

	origin, ok := store.rows["560001"]
	require.True(t, ok)
	assert.Equal(t, "Bengaluru", origin.City)
	require.True(t, origin.HasCoordinates())

	q, err := s.CalculateCharge(context.Background(), "560001", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, domain.ZoneLocal, q.Zone)

	bad := updated
	bad.BusinessPincode = "5600"
	_, err = s.UpdateSettings(context.Background(), bad)
	_, isValidation := apperrors.IsValidationError(err)
	assert.True(t, isValidation)
}
