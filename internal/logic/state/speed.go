package state

// SpeedTable is an ordered list of allowed step intervals in
// milliseconds (smaller = faster) with a current index. Pure data;
// the owning Operation guards it with its lock.
type SpeedTable struct {
	values []int
	index  int
}

// NewSpeedTable creates a table from the given values. The index is
// clamped into range.
func NewSpeedTable(values []int, index int) *SpeedTable {
	if index < 0 || index >= len(values) {
		index = 0
	}
	return &SpeedTable{values: append([]int(nil), values...), index: index}
}

// Current returns the step interval at the current index.
func (t *SpeedTable) Current() int {
	return t.values[t.index]
}

// Cycle advances the current index, wrapping around, and returns the
// new step interval.
func (t *SpeedTable) Cycle() int {
	t.index = (t.index + 1) % len(t.values)
	return t.values[t.index]
}

// Sync moves the current index to the entry matching speed, if any.
// Keeps manual speed cycling and remote speed selection consistent.
func (t *SpeedTable) Sync(speed int) bool {
	for i, v := range t.values {
		if v == speed {
			t.index = i
			return true
		}
	}
	return false
}

// Index returns the current index.
func (t *SpeedTable) Index() int {
	return t.index
}

// Values returns a copy of the table entries.
func (t *SpeedTable) Values() []int {
	return append([]int(nil), t.values...)
}
