package service

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/cache"

	"go.uber.org/zap"
)

// Locator resolves a pincode to a city/state and, when known, coordinates.
type Locator interface {
	Locate(ctx context.Context, pincode string) (*domain.Location, error)
}

// LocationEvicter drops a cached lookup after the stored row changes.
type LocationEvicter interface {
	Evict(ctx context.Context, pincode string) error
}

// CachedLocator keeps successful lookups in the shared cache. Cache errors
// are logged and the lookup falls through to the wrapped locator.
type CachedLocator struct {
	next   Locator
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedLocator(next Locator, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedLocator {
	return &CachedLocator{next: next, cache: c, ttl: ttl, logger: logger}
}

func (l *CachedLocator) Locate(ctx context.Context, pincode string) (*domain.Location, error) {
	key := l.cache.Key("pincode", pincode)

	raw, err := l.cache.Get(ctx, key)
	if err != nil {
		l.logger.Warn("location cache read failed", zap.String("pincode", pincode), zap.Error(err))
	} else if raw != "" {
		var loc domain.Location
		if err := json.Unmarshal([]byte(raw), &loc); err == nil {
			return &loc, nil
		}
		l.logger.Warn("discarding corrupt location cache entry", zap.String("pincode", pincode))
	}

	loc, err := l.next.Locate(ctx, pincode)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(loc); err == nil {
		if err := l.cache.Set(ctx, key, string(payload), l.ttl); err != nil {
			l.logger.Warn("location cache write failed", zap.String("pincode", pincode), zap.Error(err))
		}
	}
	return loc, nil
}

func (l *CachedLocator) Evict(ctx context.Context, pincode string) error {
	return l.cache.Delete(ctx, l.cache.Key("pincode", pincode))
}

// statesByPrefix maps the first two digits of a pincode to its postal
// circle's state.
var statesByPrefix = map[string]string{
	"11": "Delhi",
	"12": "Haryana", "13": "Haryana",
	"14": "Punjab", "15": "Punjab", "16": "Punjab",
	"17": "Himachal Pradesh",
	"18": "Jammu and Kashmir", "19": "Jammu and Kashmir",
	"20": "Uttar Pradesh", "21": "Uttar Pradesh", "22": "Uttar Pradesh", "23": "Uttar Pradesh",
	"24": "Uttarakhand", "25": "Uttar Pradesh", "26": "Uttarakhand", "27": "Uttar Pradesh", "28": "Uttar Pradesh",
	"30": "Rajasthan", "31": "Rajasthan", "32": "Rajasthan", "33": "Rajasthan", "34": "Rajasthan",
	"36": "Gujarat", "37": "Gujarat", "38": "Gujarat", "39": "Gujarat",
	"40": "Maharashtra", "41": "Maharashtra", "42": "Maharashtra", "43": "Maharashtra", "44": "Maharashtra",
	"45": "Madhya Pradesh", "46": "Madhya Pradesh", "47": "Madhya Pradesh", "48": "Madhya Pradesh",
	"49": "Chhattisgarh",
	"50": "Telangana",
	"51": "Andhra Pradesh", "52": "Andhra Pradesh", "53": "Andhra Pradesh",
	"56": "Karnataka", "57": "Karnataka", "58": "Karnataka", "59": "Karnataka",
	"60": "Tamil Nadu", "61": "Tamil Nadu", "62": "Tamil Nadu", "63": "Tamil Nadu", "64": "Tamil Nadu",
	"67": "Kerala", "68": "Kerala", "69": "Kerala",
	"70": "West Bengal", "71": "West Bengal", "72": "West Bengal", "73": "West Bengal", "74": "West Bengal",
	"75": "Odisha", "76": "Odisha", "77": "Odisha",
	"78": "Assam",
	"79": "Arunachal Pradesh",
	"80": "Bihar", "81": "Jharkhand", "82": "Jharkhand", "83": "Jharkhand", "84": "Bihar", "85": "Bihar",
}

// ApproximateLocation is the best-effort location used when no lookup
// succeeds. The state comes from the pincode prefix. Pincodes in the origin's
// sorting district (same first three digits) are placed in the business city,
// and the origin pincode itself gets the business coordinates.
func ApproximateLocation(pincode string, origin *domain.DeliverySettings) domain.Location {
	loc := domain.Location{Pincode: pincode, Approximate: true}
	if len(pincode) >= 2 {
		loc.State = statesByPrefix[pincode[:2]]
	}
	if origin == nil || len(pincode) != 6 || len(origin.BusinessPincode) != 6 {
		return loc
	}

	if pincode[:3] == origin.BusinessPincode[:3] {
		loc.City = origin.BusinessCity
		loc.State = origin.BusinessState
	}
	if pincode == origin.BusinessPincode {
		lat, lng := origin.BusinessLatitude, origin.BusinessLongitude
		loc.Latitude, loc.Longitude = &lat, &lng
	}
	return loc
}
