package mobility

import (
	"fmt"
	"math"

	"github.com/nerrad567/iotsim-core/internal/sched"
)

// Pattern names a movement rule.
type Pattern string

const (
	PatternStationary     Pattern = "stationary"
	PatternGrid           Pattern = "grid"
	PatternRandomWaypoint Pattern = "rwp"
)

// ValidPattern reports whether name is a supported movement pattern.
func ValidPattern(name string) bool {
	switch Pattern(name) {
	case PatternStationary, PatternGrid, PatternRandomWaypoint:
		return true
	}
	return false
}

// Movement timing constants.
const (
	// stationaryHeartbeatS is the wake interval for stationary clients.
	stationaryHeartbeatS = 5.0

	// gridBaseDelayS scales the grid inter-step delay: max(1, base/speed).
	gridBaseDelayS = 5.0

	// rwpSubStepS is the interpolation step for random waypoint travel.
	rwpSubStepS = 1.0

	// rwpDwellMinS and rwpDwellMaxS bound the pause at each waypoint.
	rwpDwellMinS = 1.0
	rwpDwellMaxS = 5.0
)

// Position is a point inside the simulation area.
type Position struct {
	X, Y float64
}

// Profile is the movement rule for one client.
type Profile struct {
	Pattern  Pattern
	SpeedMPS float64
}

// Manager owns the position of every client and registers one logical
// movement process per client on the scheduler.
type Manager struct {
	sched     *sched.Scheduler
	areaX     float64
	areaY     float64
	positions map[string]Position
	profiles  map[string]Profile
}

// NewManager creates a manager for the given area. Initial positions are
// clamped to the area bounds.
func NewManager(s *sched.Scheduler, areaX, areaY float64, initial map[string]Position, profiles map[string]Profile) *Manager {
	m := &Manager{
		sched:     s,
		areaX:     areaX,
		areaY:     areaY,
		positions: make(map[string]Position, len(initial)),
		profiles:  profiles,
	}
	for id, pos := range initial {
		m.positions[id] = m.clamp(pos)
	}
	return m
}

// Start registers a movement process for every profiled client.
func (m *Manager) Start() error {
	for id := range m.profiles {
		id := id
		if err := m.sched.ScheduleAfter(0, func() { m.step(id) }); err != nil {
			return fmt.Errorf("mobility: starting %s: %w", id, err)
		}
	}
	return nil
}

// Position returns the current coordinates for one client.
func (m *Manager) Position(clientID string) (Position, bool) {
	pos, ok := m.positions[clientID]
	return pos, ok
}

// Positions returns a copy of the current position map.
func (m *Manager) Positions() map[string]Position {
	out := make(map[string]Position, len(m.positions))
	for id, pos := range m.positions {
		out[id] = pos
	}
	return out
}

// step advances one client and reschedules itself. Each branch is one
// suspension point; the stop flag is honored before doing any work.
func (m *Manager) step(clientID string) {
	if m.sched.Stopped() {
		return
	}
	profile := m.profiles[clientID]

	switch {
	case profile.Pattern == PatternStationary || profile.SpeedMPS <= 0:
		// Heartbeat only; consumers re-read an unchanged position.
		m.reschedule(clientID, stationaryHeartbeatS)

	case profile.Pattern == PatternGrid:
		m.gridStep(clientID, profile)
		m.reschedule(clientID, math.Max(1.0, gridBaseDelayS/profile.SpeedMPS))

	default: // random waypoint
		m.startWaypoint(clientID, profile)
	}
}

// gridStep moves one unit step in a uniformly chosen axis direction.
func (m *Manager) gridStep(clientID string, profile Profile) {
	dirs := [4][2]float64{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	d := dirs[m.sched.Rand().Intn(len(dirs))]
	pos := m.positions[clientID]
	m.positions[clientID] = m.clamp(Position{
		X: pos.X + d[0]*profile.SpeedMPS,
		Y: pos.Y + d[1]*profile.SpeedMPS,
	})
}

// startWaypoint picks a destination and walks toward it in one-second
// sub-steps, then dwells before the next leg.
func (m *Manager) startWaypoint(clientID string, profile Profile) {
	rng := m.sched.Rand()
	from := m.positions[clientID]
	dest := Position{X: rng.Float64() * m.areaX, Y: rng.Float64() * m.areaY}
	distance := math.Hypot(dest.X-from.X, dest.Y-from.Y)
	steps := int(math.Ceil(distance / profile.SpeedMPS))
	if steps < 1 {
		steps = 1
	}

	var walk func(step int)
	walk = func(step int) {
		if m.sched.Stopped() {
			return
		}
		frac := float64(step) / float64(steps)
		m.positions[clientID] = m.clamp(Position{
			X: from.X + (dest.X-from.X)*frac,
			Y: from.Y + (dest.Y-from.Y)*frac,
		})
		if step < steps {
			_ = m.sched.ScheduleAfter(rwpSubStepS, func() { walk(step + 1) })
			return
		}
		dwell := rwpDwellMinS + rng.Float64()*(rwpDwellMaxS-rwpDwellMinS)
		m.reschedule(clientID, dwell)
	}
	_ = m.sched.ScheduleAfter(rwpSubStepS, func() { walk(1) })
}

func (m *Manager) reschedule(clientID string, delay float64) {
	_ = m.sched.ScheduleAfter(delay, func() { m.step(clientID) })
}

func (m *Manager) clamp(pos Position) Position {
	return Position{
		X: math.Min(math.Max(pos.X, 0), m.areaX),
		Y: math.Min(math.Max(pos.Y, 0), m.areaY),
	}
}
