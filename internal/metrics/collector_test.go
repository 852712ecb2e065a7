package metrics

import (
	"math"
	"testing"
)

func TestDeliveryRatioZeroWhenNothingSent(t *testing.T) {
	c := NewCollector()

	snap := c.Snapshot(10)

	if snap.DeliveryRatio != 0 {
		t.Errorf("delivery ratio = %v, want 0", snap.DeliveryRatio)
	}
	if snap.AvgLatencyMS != 0 {
		t.Errorf("avg latency = %v, want 0", snap.AvgLatencyMS)
	}
}

func TestDeliveryRatioBounds(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 10; i++ {
		c.RecordSend()
	}
	for i := 0; i < 7; i++ {
		c.RecordDelivery(20)
	}

	snap := c.Snapshot(5)

	if snap.DeliveryRatio < 0 || snap.DeliveryRatio > 1 {
		t.Fatalf("delivery ratio %v out of [0,1]", snap.DeliveryRatio)
	}
	if snap.DeliveryRatio != 0.7 {
		t.Errorf("delivery ratio = %v, want 0.7", snap.DeliveryRatio)
	}
	if snap.AvgLatencyMS != 20 {
		t.Errorf("avg latency = %v, want 20", snap.AvgLatencyMS)
	}
}

func TestBatteryEstimate(t *testing.T) {
	c := NewCollector()
	c.SetBatteryCapacity("a", 1000)
	c.SetBatteryCapacity("b", 1000)
	c.RecordEnergy("a", 10)

	snap := c.Snapshot(secondsPerDay) // one simulated day elapsed

	if got := snap.BatteryEstimateDays["a"]; got != 100 {
		t.Errorf("battery days for a = %v, want 100", got)
	}
	if got := snap.BatteryEstimateDays["b"]; !math.IsInf(got, 1) {
		t.Errorf("battery days for b = %v, want +Inf (no consumption)", got)
	}
}

func TestSleepRatioSkipsClientsWithoutRadioTime(t *testing.T) {
	c := NewCollector()
	c.RecordRadioTx("a", 1)
	c.RecordRadioSleep("a", 3)
	c.UpdateClientState("idle", StateConnected) // no radio time at all

	snap := c.Snapshot(10)

	if snap.SleepRatioAvg != 0.75 {
		t.Errorf("sleep ratio = %v, want 0.75", snap.SleepRatioAvg)
	}
}

func TestTopicRatesResetBetweenSnapshots(t *testing.T) {
	c := NewCollector()
	c.RecordTopic("sensors/temp")
	c.RecordTopic("sensors/temp")

	first := c.Snapshot(2)
	if got := first.TopicRates["sensors/temp"]; got != 1.0 {
		t.Errorf("rate = %v, want 1.0 (2 msgs / 2s)", got)
	}

	second := c.Snapshot(4)
	if got := second.TopicRates["sensors/temp"]; got != 0 {
		t.Errorf("rate after reset = %v, want 0", got)
	}
}

func TestSnapshotsAreAppendOnlyAndOrdered(t *testing.T) {
	c := NewCollector()
	for ts := 5.0; ts <= 25; ts += 5 {
		c.Snapshot(ts)
	}

	snaps := c.Snapshots()
	if len(snaps) != 5 {
		t.Fatalf("got %d snapshots, want 5", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Timestamp <= snaps[i-1].Timestamp {
			t.Fatalf("snapshot sequence not ordered: %v then %v",
				snaps[i-1].Timestamp, snaps[i].Timestamp)
		}
	}
}

func TestSnapshotIsSelfContained(t *testing.T) {
	c := NewCollector()
	c.UpdatePositions(map[string]Position{"a": {X: 1, Y: 2}})
	snap := c.Snapshot(5)

	// Mutating collector state afterwards must not leak into the snapshot.
	c.UpdatePositions(map[string]Position{"a": {X: 9, Y: 9}})

	if pos := snap.Positions["a"]; pos.X != 1 || pos.Y != 2 {
		t.Errorf("snapshot position mutated: (%v,%v)", pos.X, pos.Y)
	}
}

func TestSummarize(t *testing.T) {
	c := NewCollector()
	c.SetBatteryCapacity("a", 1000)
	c.SetBatteryCapacity("b", 1000)
	c.RecordEnergy("a", 10)
	for i := 0; i < 4; i++ {
		c.RecordSend()
		c.RecordDelivery(10)
	}
	c.Snapshot(secondsPerDay / 2)
	c.Snapshot(secondsPerDay)

	sum := Summarize(c.Snapshots(), "baseline")

	if sum.Scenario != "baseline" {
		t.Errorf("scenario = %q", sum.Scenario)
	}
	if sum.DeliveryRatio != 1.0 {
		t.Errorf("delivery ratio = %v, want 1.0", sum.DeliveryRatio)
	}
	// Client b is infinite and must be skipped from the battery mean.
	if sum.AvgBatteryDays != 100 {
		t.Errorf("avg battery days = %v, want 100", sum.AvgBatteryDays)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil, "empty")
	if sum.DeliveryRatio != 0 || sum.SendEvents != 0 {
		t.Errorf("empty summary not zeroed: %+v", sum)
	}
}
