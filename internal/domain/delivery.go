package domain

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Zone string

const (
	ZoneLocal        Zone = "local"
	ZoneCity         Zone = "city"
	ZoneState        Zone = "state"
	ZoneNational     Zone = "national"
	ZoneFreeShipping Zone = "free_shipping"
)

// EstimatedDays is the expected transit time for a zone.
func (z Zone) EstimatedDays() int {
	switch z {
	case ZoneLocal:
		return 1
	case ZoneCity:
		return 2
	case ZoneState:
		return 4
	default:
		return 7
	}
}

type Location struct {
	Pincode   string   `json:"pincode"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	// Approximate is set when the location was derived without a lookup.
	Approximate bool `json:"approximate"`
}

func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

type DeliverySettings struct {
	ID                     int
	BusinessPincode        string
	BusinessCity           string
	BusinessState          string
	BusinessLatitude       float64
	BusinessLongitude      float64
	LocalDeliveryCharge    decimal.Decimal
	CityDeliveryCharge     decimal.Decimal
	StateDeliveryCharge    decimal.Decimal
	NationalDeliveryCharge decimal.Decimal
	FreeShippingEnabled    bool
	FreeShippingThreshold  decimal.Decimal
	UpdatedAt              time.Time
}

func (s DeliverySettings) ChargeFor(zone Zone) decimal.Decimal {
	switch zone {
	case ZoneLocal:
		return s.LocalDeliveryCharge
	case ZoneCity:
		return s.CityDeliveryCharge
	case ZoneState:
		return s.StateDeliveryCharge
	case ZoneNational:
		return s.NationalDeliveryCharge
	default:
		return decimal.Zero
	}
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func SamePlace(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
