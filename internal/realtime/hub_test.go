package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/schedule"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_TenantScoping(t *testing.T) {
	h := testHub()
	client := &Client{tenantID: "ten_aaaaaaaa", sub: Subscription{AllEvents: true}}

	own := &Event{Type: EventDeliveryScheduled, TenantID: "ten_aaaaaaaa"}
	other := &Event{Type: EventDeliveryScheduled, TenantID: "ten_bbbbbbbb"}

	if !h.shouldSend(client, own) {
		t.Error("Should receive own tenant's events")
	}
	if h.shouldSend(client, other) {
		t.Error("Should NOT receive another tenant's events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{tenantID: "ten_aaaaaaaa", sub: Subscription{
		EventTypes: []EventType{EventDeliveryCanceled},
	}}

	canceled := &Event{Type: EventDeliveryCanceled, TenantID: "ten_aaaaaaaa"}
	scheduled := &Event{Type: EventDeliveryScheduled, TenantID: "ten_aaaaaaaa"}

	if !h.shouldSend(client, canceled) {
		t.Error("Should receive delivery_canceled events")
	}
	if h.shouldSend(client, scheduled) {
		t.Error("Should NOT receive delivery_scheduled events")
	}
}

func TestShouldSend_ChannelFilter(t *testing.T) {
	h := testHub()

	client := &Client{tenantID: "ten_aaaaaaaa", sub: Subscription{
		Channels: []string{"twitter"},
	}}

	matching := &Event{
		Type:     EventDeliveryScheduled,
		TenantID: "ten_aaaaaaaa",
		Data:     deliverySummary{ID: "del_1", Channel: "twitter"},
	}
	notMatching := &Event{
		Type:     EventDeliveryScheduled,
		TenantID: "ten_aaaaaaaa",
		Data:     deliverySummary{ID: "del_2", Channel: "email"},
	}
	cancel := &Event{
		Type:     EventDeliveryCanceled,
		TenantID: "ten_aaaaaaaa",
		Data:     map[string]string{"id": "del_3"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on channel")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other channels")
	}
	if !h.shouldSend(client, cancel) {
		t.Error("Channel filter should only apply to delivery summaries")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{tenantID: "ten_aaaaaaaa", sub: Subscription{}}

	event := &Event{Type: EventDeliveryScheduled, TenantID: "ten_aaaaaaaa"}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:      h,
		send:     make(chan []byte, 256),
		tenantID: "ten_aaaaaaaa",
		sub:      Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_DeliveriesScheduledFanout(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:      h,
		send:     make(chan []byte, 256),
		tenantID: "ten_aaaaaaaa",
		sub:      Subscription{AllEvents: true},
	}
	h.register <- client
	time.Sleep(50 * time.Millisecond)

	when := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.DeliveriesScheduled("ten_aaaaaaaa", []*schedule.Delivery{
		{ID: "del_1", Channel: "twitter", Provider: "buffer-twitter", ScheduledAt: when},
		{ID: "del_2", Channel: "twitter", Provider: "buffer-twitter", ScheduledAt: when.AddDate(0, 0, 1)},
	})

	for i := 0; i < 2; i++ {
		select {
		case msg := <-client.send:
			var ev struct {
				Type EventType       `json:"type"`
				Data deliverySummary `json:"data"`
			}
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("unmarshal event: %v", err)
			}
			if ev.Type != EventDeliveryScheduled {
				t.Errorf("Expected delivery_scheduled, got %s", ev.Type)
			}
			if ev.Data.Channel != "twitter" {
				t.Errorf("Expected channel twitter, got %s", ev.Data.Channel)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timeout waiting for event %d", i)
		}
	}
}

func TestHub_DeliveryCanceledScopedToTenant(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	other := &Client{
		hub:      h,
		send:     make(chan []byte, 256),
		tenantID: "ten_bbbbbbbb",
		sub:      Subscription{AllEvents: true},
	}
	h.register <- other
	time.Sleep(50 * time.Millisecond)

	h.DeliveryCanceled("ten_aaaaaaaa", "del_1")
	time.Sleep(100 * time.Millisecond)

	select {
	case <-other.send:
		t.Error("Other tenant should NOT receive the cancellation")
	default:
		// Good - filtered out
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}
