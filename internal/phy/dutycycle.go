package phy

// DutyCycleTracker is a sliding-window airtime ledger for one client.
//
// It records the [start, end) interval of each accepted transmission and
// answers whether a new transmission of a given duration would push the
// total airtime inside the trailing window past the allowed fraction.
// Intervals older than the window are pruned lazily on each query.
type DutyCycleTracker struct {
	windowS float64
	limit   float64
	usage   []interval
}

type interval struct {
	start, end float64
}

// NewDutyCycleTracker creates a tracker enforcing limit (a fraction, e.g.
// 0.1 for 10%) over a trailing window of windowS seconds.
func NewDutyCycleTracker(windowS, limit float64) *DutyCycleTracker {
	return &DutyCycleTracker{windowS: windowS, limit: limit}
}

// CanTransmit reports whether a transmission of durationS seconds starting
// now fits within the duty-cycle budget.
func (t *DutyCycleTracker) CanTransmit(now, durationS float64) bool {
	t.prune(now)
	return (t.used()+durationS)/t.windowS <= t.limit
}

// Record adds an accepted transmission interval to the ledger.
func (t *DutyCycleTracker) Record(start, end float64) {
	t.usage = append(t.usage, interval{start: start, end: end})
}

// UsedS returns total recorded airtime still inside the window ending at now.
func (t *DutyCycleTracker) UsedS(now float64) float64 {
	t.prune(now)
	return t.used()
}

func (t *DutyCycleTracker) used() float64 {
	var sum float64
	for _, u := range t.usage {
		sum += u.end - u.start
	}
	return sum
}

func (t *DutyCycleTracker) prune(now float64) {
	horizon := now - t.windowS
	kept := t.usage[:0]
	for _, u := range t.usage {
		if u.end >= horizon {
			kept = append(kept, u)
		}
	}
	t.usage = kept
}
