package detection

import (
	"hash/fnv"
	"math"
	"net"
	"strings"
	"time"

	"securecart/internal/models"
)

const (
	HighAmount      = 1000.0
	HighDailySpend  = 5000.0
	HighVelocity    = 5
	unusualHourLow  = 6
	unusualHourHigh = 22
)

// FeatureNames is the column order of every feature vector.
var FeatureNames = []string{
	"amount",
	"log_amount",
	"amount_hundreds",
	"hour",
	"day_of_week",
	"day_of_month",
	"month",
	"latitude",
	"longitude",
	"city_length",
	"merchant_category",
	"payment_method",
	"country",
	"device_id_length",
	"user_agent_length",
	"ip_numeric",
	"merchant_name_length",
	"merchant_hash",
	"txn_count_1h",
	"amount_sum_24h",
	"unique_merchants_7d",
	"unusual_time",
	"high_amount",
}

// Encoded categorical columns.
const (
	encMerchantCategory = "merchant_category"
	encPaymentMethod    = "payment_method"
	encCountry          = "country"
)

var highRiskCountries = map[string]struct{}{
	"unknown": {}, "russia": {}, "nigeria": {}, "romania": {}, "north korea": {}, "iran": {},
}

var suspiciousCategories = map[string]struct{}{
	"other": {}, "unknown": {}, "cash_advance": {}, "": {},
}

// Sample is the detector input. Label is only read by training.
type Sample struct {
	Amount           float64
	Time             time.Time
	MerchantName     string
	MerchantCategory string
	PaymentMethod    string
	Country          string
	City             string
	Latitude         float64
	Longitude        float64
	DeviceID         string
	UserAgent        string
	IPAddress        string
	Velocity         models.Velocity
	Label            int
}

// SampleFromTransaction builds a Sample from a stored transaction.
func SampleFromTransaction(t *models.Transaction, v models.Velocity) Sample {
	return Sample{
		Amount:           t.Amount,
		Time:             t.TransactionTime,
		MerchantName:     t.MerchantName,
		MerchantCategory: t.MerchantCategory,
		PaymentMethod:    t.PaymentMethod,
		Country:          t.Location.Country,
		City:             t.Location.City,
		Latitude:         t.Location.Latitude,
		Longitude:        t.Location.Longitude,
		DeviceID:         t.Device.DeviceID,
		UserAgent:        t.Device.UserAgent,
		IPAddress:        t.Device.IPAddress,
		Velocity:         v,
	}
}

func (s Sample) unusualTime() bool {
	h := s.Time.UTC().Hour()
	return h < unusualHourLow || h > unusualHourHigh
}

// extract builds the feature vector with the fitted encoders.
func extract(s Sample, enc map[string]*LabelEncoder) []float64 {
	t := s.Time.UTC()
	return []float64{
		s.Amount,
		math.Log1p(math.Max(s.Amount, 0)),
		s.Amount / 100,
		float64(t.Hour()),
		float64(t.Weekday()),
		float64(t.Day()),
		float64(t.Month()),
		s.Latitude,
		s.Longitude,
		float64(len(s.City)),
		enc[encMerchantCategory].Transform(s.MerchantCategory),
		enc[encPaymentMethod].Transform(s.PaymentMethod),
		enc[encCountry].Transform(s.Country),
		float64(len(s.DeviceID)),
		float64(len(s.UserAgent)),
		ipNumeric(s.IPAddress),
		float64(len(s.MerchantName)),
		float64(merchantHash(s.MerchantName)),
		float64(s.Velocity.TransactionsLastHour),
		s.Velocity.AmountLast24h,
		float64(s.Velocity.DistinctMerchantsWeek),
		boolFloat(s.unusualTime()),
		boolFloat(s.Amount > HighAmount),
	}
}

// ipNumeric maps an IPv4 address into [0, 1). Anything else maps to 0.
func ipNumeric(raw string) float64 {
	ip := net.ParseIP(strings.TrimSpace(raw)).To4()
	if ip == nil {
		return 0
	}
	n := uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
	return float64(n) / float64(1<<32)
}

func merchantHash(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(name)))
	return h.Sum32() % 1000
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Indicators lists the human-readable risk signals present in s.
func Indicators(s Sample) []string {
	var out []string
	if s.Amount > HighAmount {
		out = append(out, "high_amount")
	}
	if s.unusualTime() {
		out = append(out, "unusual_time")
	}
	if _, ok := highRiskCountries[strings.ToLower(strings.TrimSpace(s.Country))]; ok || s.Country == "" {
		out = append(out, "unusual_location")
	}
	if s.Velocity.TransactionsLastHour >= HighVelocity {
		out = append(out, "high_velocity")
	}
	if s.Velocity.AmountLast24h+s.Amount > HighDailySpend {
		out = append(out, "high_daily_spend")
	}
	if s.Velocity.HistoryLength > 0 && !s.Velocity.KnownMerchant {
		out = append(out, "new_merchant")
	}
	if _, ok := suspiciousCategories[strings.ToLower(s.MerchantCategory)]; ok {
		out = append(out, "suspicious_merchant_category")
	}
	ua := strings.ToLower(strings.TrimSpace(s.UserAgent))
	if ua == "" || ua == "unknown" || strings.HasPrefix(strings.ToLower(s.DeviceID), "suspicious") {
		out = append(out, "suspicious_device")
	}
	return out
}
