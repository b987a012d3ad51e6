package detection

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"securecart/internal/models"
)

const syntheticFraudShare = 0.2

var (
	legitMerchants  = []string{"Walmart", "Target", "Amazon", "Best Buy", "Costco"}
	legitCategories = []string{"grocery", "electronics", "clothing", "gas_station"}
	legitCountries  = []string{"USA", "Canada", "Mexico"}
	legitCities     = []string{"New York", "Los Angeles", "Chicago", "Houston"}
	legitMethods    = []string{"credit_card", "debit_card", "digital_wallet", "bank_transfer"}

	fraudMerchants  = []string{"Unknown Merchant", "Suspicious Store", "Quick Cash"}
	fraudCategories = []string{"other", "cash_advance", "unknown"}
	fraudCountries  = []string{"Unknown", "Russia", "Nigeria", "Romania"}
)

// GenerateSynthetic returns n shuffled samples, 80% legitimate and 20%
// fraudulent. The same seed yields the same data.
func GenerateSynthetic(n int, seed int64, now time.Time) []Sample {
	rng := rand.New(rand.NewSource(seed))
	fraud := int(float64(n) * syntheticFraudShare)
	out := make([]Sample, 0, n)
	for i := 0; i < n-fraud; i++ {
		out = append(out, legitSample(rng, now))
	}
	for i := 0; i < fraud; i++ {
		out = append(out, fraudSample(rng, now))
	}
	rng.Shuffle(len(out), func(a, b int) { out[a], out[b] = out[b], out[a] })
	return out
}

func legitSample(rng *rand.Rand, now time.Time) Sample {
	merchant := choose(rng, legitMerchants)
	return Sample{
		Amount:           math.Round(math.Exp(4+rng.NormFloat64())*100) / 100,
		Time:             now.Add(-time.Duration(rng.Int63n(int64(30 * 24 * time.Hour)))),
		MerchantName:     merchant,
		MerchantCategory: choose(rng, legitCategories),
		PaymentMethod:    choose(rng, legitMethods),
		Country:          choose(rng, legitCountries),
		City:             choose(rng, legitCities),
		Latitude:         25 + rng.Float64()*20,
		Longitude:        -125 + rng.Float64()*55,
		DeviceID:         fmt.Sprintf("device_%d", rng.Intn(1000)),
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		IPAddress:        fmt.Sprintf("192.168.%d.%d", rng.Intn(256), rng.Intn(256)),
		Velocity: models.Velocity{
			TransactionsLastHour:  rng.Intn(3),
			AmountLast24h:         rng.Float64() * 500,
			DistinctMerchantsWeek: 1 + rng.Intn(5),
			HistoryLength:         10 + rng.Intn(50),
			KnownMerchant:         rng.Float64() < 0.8,
		},
	}
}

func fraudSample(rng *rand.Rand, now time.Time) Sample {
	return Sample{
		Amount:           math.Round((500+rng.Float64()*4500)*100) / 100,
		Time:             now.Add(-time.Duration(rng.Int63n(int64(6 * time.Hour)))),
		MerchantName:     choose(rng, fraudMerchants),
		MerchantCategory: choose(rng, fraudCategories),
		PaymentMethod:    "credit_card",
		Country:          choose(rng, fraudCountries),
		City:             "Unknown",
		Latitude:         -90 + rng.Float64()*180,
		Longitude:        -180 + rng.Float64()*360,
		DeviceID:         fmt.Sprintf("suspicious_device_%d", rng.Intn(100)),
		UserAgent:        "Unknown",
		IPAddress:        fmt.Sprintf("%d.%d.%d.%d", 1+rng.Intn(223), rng.Intn(256), rng.Intn(256), rng.Intn(256)),
		Velocity: models.Velocity{
			TransactionsLastHour:  5 + rng.Intn(16),
			AmountLast24h:         1000 + rng.Float64()*9000,
			DistinctMerchantsWeek: 5 + rng.Intn(16),
			HistoryLength:         rng.Intn(5),
			KnownMerchant:         false,
		},
		Label: 1,
	}
}

func choose(rng *rand.Rand, vs []string) string {
	return vs[rng.Intn(len(vs))]
}
