//go:build integration

package mirror

import (
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/iotsim-core/internal/metrics"
)

// Integration tests for the mirror against a live broker.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mirror/...

// TestIntegration_SnapshotRoundtrip verifies a published snapshot arrives
// intact on the run's snapshot topic.
func TestIntegration_SnapshotRoundtrip(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "iotsim-int-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "iotsim-int-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	received := make(chan []byte, 1)
	var once sync.Once

	err = subClient.Subscribe(Topics{}.AllRunSnapshots(), 1, func(topic string, payload []byte) error {
		once.Do(func() {
			received <- payload
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	want := metrics.Snapshot{
		Timestamp:      120,
		DeliveryRatio:  0.97,
		AvgLatencyMS:   22.5,
		SendEvents:     100,
		DeliveryEvents: 97,
	}
	if err := pubClient.PublishSnapshot("run-int-1", want); err != nil {
		t.Fatalf("PublishSnapshot() error = %v", err)
	}

	select {
	case payload := <-received:
		var got metrics.Snapshot
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("decoding received snapshot: %v", err)
		}
		if got.Timestamp != want.Timestamp || got.DeliveryRatio != want.DeliveryRatio {
			t.Errorf("received snapshot = %+v, want %+v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for snapshot")
	}
}

// TestIntegration_SummaryEncodesInfAsSentinel verifies a mains-powered
// fleet's infinite battery estimate survives the JSON round trip as -1.
func TestIntegration_SummaryEncodesInfAsSentinel(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "iotsim-int-sum-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	cfg.Broker.ClientID = "iotsim-int-sum-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	received := make(chan []byte, 1)
	var once sync.Once

	err = subClient.Subscribe(Topics{}.RunSummary("run-int-2"), 1, func(topic string, payload []byte) error {
		once.Do(func() {
			received <- payload
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	summary := metrics.Summary{
		Scenario:       "bench",
		DeliveryRatio:  1,
		AvgBatteryDays: math.Inf(1),
	}
	if err := pubClient.PublishSummary("run-int-2", summary); err != nil {
		t.Fatalf("PublishSummary() error = %v", err)
	}

	select {
	case payload := <-received:
		var got metrics.Summary
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("decoding received summary: %v", err)
		}
		if got.AvgBatteryDays != mainsPoweredSentinel {
			t.Errorf("AvgBatteryDays = %v, want %v", got.AvgBatteryDays, mainsPoweredSentinel)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for summary")
	}
}

// TestIntegration_FailoverControl verifies a control message reaches the
// registered failover handler with the decoded duration.
func TestIntegration_FailoverControl(t *testing.T) {
	cfg := testConfig()

	cfg.Broker.ClientID = "iotsim-int-ctl-sub"
	subClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	cfg.Broker.ClientID = "iotsim-int-ctl-pub"
	pubClient, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	received := make(chan float64, 1)
	var once sync.Once

	err = subClient.SubscribeFailover(func(downS float64) error {
		once.Do(func() {
			received <- downS
		})
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeFailover() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	err = pubClient.PublishString(Topics{}.ControlFailover(), `{"down_s": 15}`, 1, false)
	if err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case downS := <-received:
		if downS != 15 {
			t.Errorf("failover down_s = %v, want 15", downS)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for failover request")
	}
}

// TestIntegration_SubscriptionTracking verifies subscriptions are tracked
// for restoration on reconnect.
func TestIntegration_SubscriptionTracking(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "iotsim-int-sub-track"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := []string{
		"iotsim/int/test/topic1",
		"iotsim/int/test/topic2",
		"iotsim/int/test/topic3",
	}

	handler := func(topic string, payload []byte) error {
		return nil
	}

	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if client.SubscriptionCount() != len(topics) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(topics))
	}

	for _, topic := range topics {
		if !client.HasSubscription(topic) {
			t.Errorf("HasSubscription(%s) = false, want true", topic)
		}
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	if client.HasSubscription(topics[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", topics[0])
	}
}
