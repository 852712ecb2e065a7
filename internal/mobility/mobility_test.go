package mobility

import (
	"math"
	"testing"

	"github.com/nerrad567/iotsim-core/internal/sched"
)

func newManager(t *testing.T, profiles map[string]Profile, initial map[string]Position) (*Manager, *sched.Scheduler) {
	t.Helper()
	s := sched.New(3)
	m := NewManager(s, 100, 100, initial, profiles)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m, s
}

func TestStationaryPositionNeverMoves(t *testing.T) {
	m, s := newManager(t,
		map[string]Profile{"a": {Pattern: PatternStationary, SpeedMPS: 2}},
		map[string]Position{"a": {X: 10, Y: 20}},
	)

	s.RunUntil(300)

	pos, ok := m.Position("a")
	if !ok {
		t.Fatal("position missing")
	}
	if pos.X != 10 || pos.Y != 20 {
		t.Errorf("stationary client moved to (%v,%v)", pos.X, pos.Y)
	}
}

func TestGridStaysInsideBounds(t *testing.T) {
	m, s := newManager(t,
		map[string]Profile{"g": {Pattern: PatternGrid, SpeedMPS: 5}},
		map[string]Position{"g": {X: 1, Y: 1}},
	)

	for i := 0; i < 50; i++ {
		s.RunUntil(float64(i+1) * 10)
		pos, _ := m.Position("g")
		if pos.X < 0 || pos.X > 100 || pos.Y < 0 || pos.Y > 100 {
			t.Fatalf("grid client escaped bounds: (%v,%v)", pos.X, pos.Y)
		}
	}
}

func TestGridMovesAxisAligned(t *testing.T) {
	m, s := newManager(t,
		map[string]Profile{"g": {Pattern: PatternGrid, SpeedMPS: 3}},
		map[string]Position{"g": {X: 50, Y: 50}},
	)

	prev, _ := m.Position("g")
	moved := false
	for i := 0; i < 20; i++ {
		s.RunUntil(float64(i+1) * 5)
		pos, _ := m.Position("g")
		dx := math.Abs(pos.X - prev.X)
		dy := math.Abs(pos.Y - prev.Y)
		if dx > 0 && dy > 0 {
			t.Fatalf("diagonal grid move: (%v,%v) -> (%v,%v)", prev.X, prev.Y, pos.X, pos.Y)
		}
		if dx > 0 || dy > 0 {
			moved = true
		}
		prev = pos
	}
	if !moved {
		t.Error("grid client never moved")
	}
}

func TestRandomWaypointProducesIntermediatePositions(t *testing.T) {
	m, s := newManager(t,
		map[string]Profile{"r": {Pattern: PatternRandomWaypoint, SpeedMPS: 2}},
		map[string]Position{"r": {X: 0, Y: 0}},
	)

	seen := map[Position]bool{}
	for i := 0; i < 60; i++ {
		s.RunUntil(float64(i + 1))
		pos, _ := m.Position("r")
		if pos.X < 0 || pos.X > 100 || pos.Y < 0 || pos.Y > 100 {
			t.Fatalf("waypoint client escaped bounds: (%v,%v)", pos.X, pos.Y)
		}
		seen[pos] = true
	}

	// Smooth interpolation means many distinct intermediate points, not a
	// teleport from origin to destination.
	if len(seen) < 5 {
		t.Errorf("only %d distinct positions over 60s; expected smooth travel", len(seen))
	}
}

func TestZeroSpeedFallsBackToHeartbeat(t *testing.T) {
	m, s := newManager(t,
		map[string]Profile{"z": {Pattern: PatternRandomWaypoint, SpeedMPS: 0}},
		map[string]Position{"z": {X: 40, Y: 40}},
	)

	s.RunUntil(100)

	pos, _ := m.Position("z")
	if pos.X != 40 || pos.Y != 40 {
		t.Errorf("zero-speed client moved to (%v,%v)", pos.X, pos.Y)
	}
}

func TestInitialPositionsClamped(t *testing.T) {
	m, _ := newManager(t,
		map[string]Profile{"c": {Pattern: PatternStationary}},
		map[string]Position{"c": {X: -5, Y: 400}},
	)

	pos, _ := m.Position("c")
	if pos.X != 0 || pos.Y != 100 {
		t.Errorf("initial position not clamped: (%v,%v)", pos.X, pos.Y)
	}
}

func TestValidPattern(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "stationary", input: "stationary", want: true},
		{name: "grid", input: "grid", want: true},
		{name: "random waypoint", input: "rwp", want: true},
		{name: "unknown", input: "brownian", want: false},
		{name: "empty", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidPattern(tt.input); got != tt.want {
				t.Errorf("ValidPattern(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
