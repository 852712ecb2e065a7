package mirror

import "fmt"

// Topic prefixes for the mirror's output and control topics.
//
// Per-run topics use the scheme: iotsim/run/{run_id}/{kind}
const (
	// TopicPrefix is the base for all simulator topics.
	TopicPrefix = "iotsim"

	// TopicPrefixRun is the base for per-run output topics.
	TopicPrefixRun = "iotsim/run"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "iotsim/system"

	// TopicPrefixControl is the base for inbound control topics.
	TopicPrefixControl = "iotsim/control"
)

// Topics provides builders for the mirror's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mirror.Topics{}
//	snapTopic := topics.RunSnapshot("run-abc123")
//	// Returns: "iotsim/run/run-abc123/snapshot"
type Topics struct{}

// RunSnapshot returns the topic for per-snapshot metrics of a run.
//
// Example: iotsim/run/run-abc123/snapshot
func (Topics) RunSnapshot(runID string) string {
	return fmt.Sprintf("%s/%s/snapshot", TopicPrefixRun, runID)
}

// RunSummary returns the topic for a run's final summary.
// Published retained so late subscribers still see the outcome.
//
// Example: iotsim/run/run-abc123/summary
func (Topics) RunSummary(runID string) string {
	return fmt.Sprintf("%s/%s/summary", TopicPrefixRun, runID)
}

// RunStatus returns the topic for run lifecycle updates.
//
// Example: iotsim/run/run-abc123/status
func (Topics) RunStatus(runID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixRun, runID)
}

// SystemStatus returns the simulator's online/offline status topic.
// This is also the LWT topic.
//
// Example: iotsim/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// ControlFailover returns the inbound topic for failover requests.
//
// Example: iotsim/control/failover
func (Topics) ControlFailover() string {
	return fmt.Sprintf("%s/failover", TopicPrefixControl)
}

// AllRunSnapshots returns a pattern matching snapshot topics for all runs.
//
// Pattern: iotsim/run/+/snapshot
func (Topics) AllRunSnapshots() string {
	return fmt.Sprintf("%s/+/snapshot", TopicPrefixRun)
}

// AllRunTopics returns a pattern matching every per-run topic.
//
// Pattern: iotsim/run/#
func (Topics) AllRunTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefixRun)
}
