package cache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) float64 { return float64(now.Add(-d).UnixMilli()) }

	members := []redis.Z{
		{Score: at(10 * time.Minute), Member: "txn_1|20.00|Amazon"},
		{Score: at(50 * time.Minute), Member: "txn_2|30.50|Target"},
		{Score: at(5 * time.Hour), Member: "txn_3|100.00|amazon"},
		{Score: at(72 * time.Hour), Member: "txn_4|999.99|Costco"},
		{Score: at(time.Minute), Member: "malformed"},
	}

	tests := []struct {
		name     string
		merchant string
		known    bool
	}{
		{"known merchant is case insensitive", "AMAZON", true},
		{"unseen merchant", "Quick Cash", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := summarize(members, tt.merchant, now)
			assert.Equal(t, 2, v.TransactionsLastHour)
			assert.InDelta(t, 150.50, v.AmountLast24h, 1e-9)
			assert.Equal(t, 3, v.DistinctMerchantsWeek)
			assert.Equal(t, 4, v.HistoryLength)
			assert.Equal(t, tt.known, v.KnownMerchant)
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	v := summarize(nil, "Amazon", time.Now())
	assert.Zero(t, v.HistoryLength)
	assert.False(t, v.KnownMerchant)
}
