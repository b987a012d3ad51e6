package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"securecart/internal/models"

	"github.com/redis/go-redis/v9"
)

const velocityRetention = 7 * 24 * time.Hour

// VelocityStore keeps a per-user sorted set scored by unix milliseconds.
// Members encode "<txnID>|<amount>|<merchant>".
type VelocityStore struct {
	client redis.UniversalClient
}

func NewVelocityStore(client redis.UniversalClient) *VelocityStore {
	return &VelocityStore{client: client}
}

func velocityKey(userID string) string {
	return "velocity:user:" + userID
}

// Record adds a transaction and trims entries older than the retention.
func (v *VelocityStore) Record(ctx context.Context, userID, txnID, merchant string, amount float64, at time.Time) error {
	key := velocityKey(userID)
	member := fmt.Sprintf("%s|%s|%s", txnID, strconv.FormatFloat(amount, 'f', 2, 64), merchant)

	pipe := v.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(at.Add(-velocityRetention).UnixMilli(), 10))
	pipe.Expire(ctx, key, velocityRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record velocity: %w", err)
	}
	return nil
}

// Snapshot computes the velocity features of userID as of at. merchant is
// checked against the user's merchants of the last week.
func (v *VelocityStore) Snapshot(ctx context.Context, userID, merchant string, at time.Time) (models.Velocity, error) {
	members, err := v.client.ZRangeByScoreWithScores(ctx, velocityKey(userID), &redis.ZRangeBy{
		Min: strconv.FormatInt(at.Add(-velocityRetention).UnixMilli(), 10),
		Max: strconv.FormatInt(at.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return models.Velocity{}, fmt.Errorf("read velocity: %w", err)
	}
	return summarize(members, merchant, at), nil
}

func summarize(members []redis.Z, merchant string, at time.Time) models.Velocity {
	var out models.Velocity
	hourAgo := float64(at.Add(-time.Hour).UnixMilli())
	dayAgo := float64(at.Add(-24 * time.Hour).UnixMilli())
	merchants := map[string]struct{}{}

	for _, z := range members {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		parts := strings.SplitN(raw, "|", 3)
		if len(parts) != 3 {
			continue
		}
		out.HistoryLength++
		if z.Score >= hourAgo {
			out.TransactionsLastHour++
		}
		if z.Score >= dayAgo {
			if amount, err := strconv.ParseFloat(parts[1], 64); err == nil {
				out.AmountLast24h += amount
			}
		}
		merchants[strings.ToLower(parts[2])] = struct{}{}
	}
	out.DistinctMerchantsWeek = len(merchants)
	_, out.KnownMerchant = merchants[strings.ToLower(merchant)]
	return out
}
