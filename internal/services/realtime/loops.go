package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"securecart/internal/models"
	"securecart/internal/repositories/cache"
)

// Run starts the background loops and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	var wg sync.WaitGroup
	loops := []func(context.Context){h.alertLoop, h.statsLoop, h.sweepLoop}
	if h.deps.Bridge != nil {
		loops = append(loops, h.bridgeLoop)
	}
	for _, loop := range loops {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(loop)
	}
	log.Println("✅ WebSocket background tasks started")
	wg.Wait()

	for _, c := range h.all() {
		h.Unregister(c)
	}
	log.Println("WebSocket hub stopped")
}

func (h *Hub) alertLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-h.alerts:
			h.deliverAlert(a)
		}
	}
}

// statsLoop pushes live statistics while the live_stats room has members.
func (h *Hub) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(h.opts.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pushStats(ctx)
		}
	}
}

func (h *Hub) pushStats(ctx context.Context) {
	if h.RoomSize(RoomLiveStats) == 0 {
		return
	}
	stats, err := h.liveStats(ctx)
	if err != nil {
		log.Printf("⚠️ Periodic stats update failed: %v", err)
		return
	}
	h.Emit(RoomLiveStats, EventLiveStatsUpdate, stats)
}

func (h *Hub) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(h.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// sweep disconnects clients idle for longer than StaleAfter.
func (h *Hub) sweep() int {
	now := h.now()
	stale := 0
	for _, c := range h.all() {
		if now.Sub(c.LastActivity()) > h.opts.StaleAfter {
			log.Printf("Disconnecting stale session: %s", c.ID)
			h.Unregister(c)
			stale++
		}
	}
	return stale
}

func (h *Hub) bridgePublish(channel, event string, data any) {
	if h.deps.Bridge == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ Failed to encode %s for fan-out: %v", event, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.deps.Bridge.Publish(ctx, channel, cache.Envelope{Origin: h.id, Event: event, Data: raw}); err != nil {
		log.Printf("⚠️ Redis fan-out on %s failed: %v", channel, err)
	}
}

// bridgeLoop resubscribes after errors until ctx is done.
func (h *Hub) bridgeLoop(ctx context.Context) {
	channels := []string{ChannelFraudAlerts, ChannelSystemNotifications, ChannelTransactionUpdates, ChannelThresholdUpdates}
	for {
		err := h.deps.Bridge.Subscribe(ctx, h.handleRemote, channels...)
		if ctx.Err() != nil {
			return
		}
		log.Printf("⚠️ Redis subscription ended, retrying: %v", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// handleRemote delivers an event raised on another instance to local
// clients. Events from this instance were already delivered.
func (h *Hub) handleRemote(channel string, env cache.Envelope) {
	if env.Origin == h.id {
		return
	}
	switch channel {
	case ChannelFraudAlerts:
		var a models.FraudAlert
		if err := json.Unmarshal(env.Data, &a); err == nil {
			h.enqueueAlert(a)
		}
	case ChannelTransactionUpdates:
		var u TransactionUpdate
		if err := json.Unmarshal(env.Data, &u); err == nil {
			h.Emit(RoomLiveStats, EventTransactionUpdate, u)
		}
	case ChannelSystemNotifications:
		var n Notification
		if err := json.Unmarshal(env.Data, &n); err == nil {
			h.deliverNotification(n)
		}
	case ChannelThresholdUpdates:
		var u ThresholdUpdate
		if err := json.Unmarshal(env.Data, &u); err != nil {
			return
		}
		if h.deps.Thresholds != nil {
			if err := h.deps.Thresholds.ApplyFraudThreshold(u.NewValue / 100); err != nil {
				log.Printf("⚠️ Failed to apply remote threshold update: %v", err)
			}
		}
		h.deliverThreshold(u)
	}
}
