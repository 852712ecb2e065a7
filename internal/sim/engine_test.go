package sim

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/nerrad567/iotsim-core/internal/broker"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/logging"
	"github.com/nerrad567/iotsim-core/internal/metrics"
	"github.com/nerrad567/iotsim-core/internal/mobility"
	"github.com/nerrad567/iotsim-core/internal/node"
	"github.com/nerrad567/iotsim-core/internal/phy"
)

// benchScenario builds the reference workload: clients on Wi-Fi publishing
// every 30s to their own topic, each subscribed to itself, over a lossless
// WAN with no spurious duplicates.
func benchScenario(clients int, qos int, queueCapacity int) Scenario {
	sc := Scenario{
		Name:      "bench",
		Seed:      7,
		DurationS: 600,
		AreaX:     200,
		AreaY:     200,
		Broker: broker.Config{
			QueueCapacity: queueCapacity,
			WANLatencyMS:  20,
		},
	}
	for i := 0; i < clients; i++ {
		id := fmt.Sprintf("client-%02d", i)
		topic := "status/" + id
		sc.Devices = append(sc.Devices, Device{
			Node: node.Config{
				ID:               id,
				Radio:            phy.RadioWiFi,
				Topic:            topic,
				QoS:              qos,
				PayloadBytes:     100,
				PublishIntervalS: 30,
				Subscriptions:    []node.Subscription{{Filter: topic, QoS: qos}},
			},
			Mobility: mobility.Profile{Pattern: mobility.PatternStationary},
		})
	}
	return sc
}

func testLogger() *logging.Logger { return logging.Default() }

func TestScenarioValidation(t *testing.T) {
	if _, err := New(Scenario{DurationS: 600}, testLogger()); err != ErrNoDevices {
		t.Errorf("New() without devices error = %v, want %v", err, ErrNoDevices)
	}

	sc := benchScenario(1, 0, 100)
	sc.DurationS = 0
	if _, err := New(sc, testLogger()); err != ErrInvalidDuration {
		t.Errorf("New() without duration error = %v, want %v", err, ErrInvalidDuration)
	}
}

func TestBaselineRunDeliversEverything(t *testing.T) {
	engine, err := New(benchScenario(10, 1, 1000), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := engine.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Summary.SendEvents == 0 {
		t.Fatal("no publishes happened")
	}
	if result.Summary.DeliveryRatio != 1.0 {
		t.Errorf("delivery ratio = %v, want exactly 1.0 on a lossless WAN", result.Summary.DeliveryRatio)
	}
	if result.Summary.Duplicates != 0 {
		t.Errorf("duplicates = %d, want 0 with duplicate prob 0", result.Summary.Duplicates)
	}
	if math.Abs(result.Summary.AvgLatencyMS-20) > 1e-9 {
		t.Errorf("avg latency = %v, want 20 (base WAN latency, no jitter)", result.Summary.AvgLatencyMS)
	}
	if len(result.Snapshots) == 0 {
		t.Fatal("no snapshots captured")
	}

	final := result.Snapshots[len(result.Snapshots)-1]
	if final.Timestamp != 600 {
		t.Errorf("final snapshot at t=%v, want 600", final.Timestamp)
	}
	for id, state := range final.ClientStates {
		if state != metrics.StateConnected {
			t.Errorf("client %s state = %q, want connected", id, state)
		}
	}
	if len(final.Positions) != 10 {
		t.Errorf("final snapshot tracks %d positions, want 10", len(final.Positions))
	}
}

func TestFailoverRecoversPersistentSessions(t *testing.T) {
	sc := benchScenario(10, 1, 1000)
	sc.Failover = &Failover{AtS: 200, DownS: 10}

	engine, err := New(sc, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := engine.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Nodes pause publishing during the outage; queued traffic lands in
	// persistent offline queues and replays on recovery, so nothing is lost.
	if result.Summary.DeliveryRatio != 1.0 {
		t.Errorf("delivery ratio = %v, want 1.0 with persistent sessions", result.Summary.DeliveryRatio)
	}

	final := result.Snapshots[len(result.Snapshots)-1]
	for id, state := range final.ClientStates {
		if state != metrics.StateConnected {
			t.Errorf("client %s state = %q, want connected after recovery", id, state)
		}
	}

	// The snapshot inside the outage window shows clients reconnecting.
	var sawReconnecting bool
	for _, snap := range result.Snapshots {
		if snap.Timestamp < 200 || snap.Timestamp >= 210 {
			continue
		}
		for _, state := range snap.ClientStates {
			if state == metrics.StateReconnecting {
				sawReconnecting = true
			}
		}
	}
	if !sawReconnecting {
		t.Error("no snapshot during the outage shows reconnecting clients")
	}
}

func TestQueueBackpressureDropsAndCounts(t *testing.T) {
	engine, err := New(benchScenario(10, 0, 1), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := engine.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Summary.QueueDrops < 100 {
		t.Errorf("queue drops = %d, want >= 100 with capacity 1 and 10 synchronized publishers", result.Summary.QueueDrops)
	}
	got := result.Summary.DeliveryRatio
	if got <= 0 || got >= 0.5 {
		t.Errorf("delivery ratio = %v, want in (0, 0.5): one survivor per publish round", got)
	}
	if result.Summary.SendEvents != result.Summary.DeliveryEvents+result.Summary.QueueDrops {
		t.Errorf("sends (%d) != deliveries (%d) + drops (%d) on a lossless WAN",
			result.Summary.SendEvents, result.Summary.DeliveryEvents, result.Summary.QueueDrops)
	}
}

func TestRunsReplayIdenticallyForSameSeed(t *testing.T) {
	run := func() Result {
		t.Helper()
		sc := benchScenario(5, 1, 100)
		sc.Broker.WANJitterMS = 15
		sc.Broker.WANLossRate = 0.05
		sc.Devices[0].Mobility = mobility.Profile{Pattern: mobility.PatternRandomWaypoint, SpeedMPS: 1.5}
		engine, err := New(sc, testLogger())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		result, err := engine.Run()
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return result
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a.Summary, b.Summary) {
		t.Errorf("summaries diverged:\n  first  %+v\n  second %+v", a.Summary, b.Summary)
	}
	if len(a.Snapshots) != len(b.Snapshots) {
		t.Fatalf("snapshot counts diverged: %d vs %d", len(a.Snapshots), len(b.Snapshots))
	}
	last := len(a.Snapshots) - 1
	if !reflect.DeepEqual(a.Snapshots[last].Positions, b.Snapshots[last].Positions) {
		t.Error("final positions diverged between identically seeded runs")
	}
}

func TestMovingGatewayTracksMobility(t *testing.T) {
	sc := benchScenario(2, 0, 100)
	sc.Gateways = []Gateway{{
		ID:       "gw-van",
		X:        10,
		Y:        10,
		RangeM:   90,
		Link:     broker.Link{LatencyMS: 30},
		Mobility: &mobility.Profile{Pattern: mobility.PatternRandomWaypoint, SpeedMPS: 5},
	}}

	engine, err := New(sc, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	result, err := engine.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	first := result.Snapshots[0].Gateways["gw-van"]
	last := result.Snapshots[len(result.Snapshots)-1].Gateways["gw-van"]
	if first.RangeM != 90 {
		t.Errorf("gateway range = %v, want 90", first.RangeM)
	}
	if first.Position == last.Position {
		t.Error("moving gateway never changed position across the run")
	}
}

func TestExternalFailoverRequestApplies(t *testing.T) {
	sc := benchScenario(4, 1, 1000)
	engine, err := New(sc, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Request before Run: the first tick applies it, exactly like an API
	// request landing mid-run.
	engine.RequestFailover(10)

	result, err := engine.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var sawReconnecting bool
	for _, snap := range result.Snapshots {
		for _, state := range snap.ClientStates {
			if state == metrics.StateReconnecting {
				sawReconnecting = true
			}
		}
	}
	if !sawReconnecting {
		t.Error("requested failover never took effect")
	}

	final := result.Snapshots[len(result.Snapshots)-1]
	for id, state := range final.ClientStates {
		if state != metrics.StateConnected {
			t.Errorf("client %s state = %q, want connected after recovery", id, state)
		}
	}
}
