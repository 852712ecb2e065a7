package mirror

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/iotsim-core/internal/metrics"
)

// mainsPoweredSentinel replaces an infinite battery estimate in JSON output.
// JSON has no encoding for +Inf; -1 means "mains powered, never depletes".
const mainsPoweredSentinel = -1

// PublishSnapshot publishes one run snapshot as JSON to the run's
// snapshot topic. Not retained; the stream is ephemeral.
//
// Parameters:
//   - runID: The run this snapshot belongs to
//   - snap: The snapshot to publish
func (c *Client) PublishSnapshot(runID string, snap metrics.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encoding snapshot: %w", ErrPublishFailed, err)
	}
	return c.Publish(Topics{}.RunSnapshot(runID), payload, byte(c.cfg.QoS), false)
}

// PublishSummary publishes a run's final summary as JSON, retained, so
// dashboards that connect after the run still see its outcome.
//
// An infinite battery estimate (all-mains fleet) is encoded as -1.
func (c *Client) PublishSummary(runID string, summary metrics.Summary) error {
	if math.IsInf(summary.AvgBatteryDays, 1) {
		summary.AvgBatteryDays = mainsPoweredSentinel
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("%w: encoding summary: %w", ErrPublishFailed, err)
	}
	return c.PublishRetained(Topics{}.RunSummary(runID), payload)
}

// PublishRunStatus publishes a run lifecycle update (running, completed,
// stopped, failed), retained.
func (c *Client) PublishRunStatus(runID, status string) error {
	payload := fmt.Sprintf(
		`{"run_id":"%s","status":"%s","timestamp":"%s"}`,
		runID,
		status,
		time.Now().UTC().Format(time.RFC3339),
	)
	return c.PublishRetained(Topics{}.RunStatus(runID), []byte(payload))
}

// failoverRequest is the expected payload on the failover control topic.
type failoverRequest struct {
	DownS float64 `json:"down_s"`
}

// SubscribeFailover registers a handler for inbound failover requests on
// iotsim/control/failover. The expected payload is {"down_s": <seconds>};
// requests with a non-positive duration are rejected.
//
// This lets an operator inject a gateway outage into a live run with a
// plain mosquitto_pub.
func (c *Client) SubscribeFailover(handler func(downS float64) error) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	return c.Subscribe(Topics{}.ControlFailover(), byte(c.cfg.QoS), func(topic string, payload []byte) error {
		var req failoverRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return fmt.Errorf("decoding failover request: %w", err)
		}
		if req.DownS <= 0 {
			return fmt.Errorf("failover request down_s must be positive, got %v", req.DownS)
		}
		return handler(req.DownS)
	})
}
