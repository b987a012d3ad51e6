package detection

var heuristicWeights = map[string]float64{
	"high_amount":                  0.25,
	"unusual_time":                 0.10,
	"unusual_location":             0.20,
	"high_velocity":                0.20,
	"high_daily_spend":             0.10,
	"new_merchant":                 0.05,
	"suspicious_merchant_category": 0.15,
	"suspicious_device":            0.15,
}

const (
	heuristicBase       = 0.05
	heuristicCeiling    = 0.99
	heuristicConfidence = 0.5
)

func heuristicProbability(indicators []string) float64 {
	p := heuristicBase
	for _, ind := range indicators {
		p += heuristicWeights[ind]
	}
	return clamp(p, 0, heuristicCeiling)
}
