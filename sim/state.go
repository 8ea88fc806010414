package sim

import (
	"fmt"
	"strconv"
	"strings"
)

// StateKey is the discretized decision context handed to the learning agent.
// Two Factory instances in logically identical situations produce
// structurally equal keys with identical encodings; the value table depends
// on that contract.
type StateKey struct {
	// MachineID and Priority identify the machine awaiting a decision
	// (zero-valued when no machine awaits one).
	MachineID int
	Priority  int
	// Shift is the current shift index.
	Shift int
	// TimeBucket discretizes remaining time in the day into 4 levels.
	TimeBucket int
	// GapBucket discretizes the production shortfall into 4 levels.
	GapBucket int
	// WorkerIdle holds 1 per idle worker, 0 per busy worker, in worker order.
	WorkerIdle []int
	// SkillBuckets holds the 3-level skill bucket (0 low, 1 mid, 2 high) of
	// every worker on the awaiting machine's type, in worker order.
	SkillBuckets []int
	// MachineStatuses holds the status bucket of every machine, in machine
	// order, using the MachineStatus numeric values.
	MachineStatuses []int
}

// Equal reports structural, order-sensitive equality.
func (k StateKey) Equal(other StateKey) bool {
	return k.Encode() == other.Encode()
}

// Encode renders the key in its canonical reversible textual form, e.g.
//
//	M2;P1;S0;T3;G2;A110100;K210210;U0100
//
// The encoding is the value-table map key and the portable file's state
// string, so it must stay stable across releases.
func (k StateKey) Encode() string {
	var b strings.Builder
	b.WriteByte('M')
	b.WriteString(strconv.Itoa(k.MachineID))
	b.WriteString(";P")
	b.WriteString(strconv.Itoa(k.Priority))
	b.WriteString(";S")
	b.WriteString(strconv.Itoa(k.Shift))
	b.WriteString(";T")
	b.WriteString(strconv.Itoa(k.TimeBucket))
	b.WriteString(";G")
	b.WriteString(strconv.Itoa(k.GapBucket))
	b.WriteString(";A")
	writeDigits(&b, k.WorkerIdle)
	b.WriteString(";K")
	writeDigits(&b, k.SkillBuckets)
	b.WriteString(";U")
	writeDigits(&b, k.MachineStatuses)
	return b.String()
}

func writeDigits(b *strings.Builder, vals []int) {
	for _, v := range vals {
		b.WriteByte(byte('0' + v))
	}
}

// ParseStateKey inverts Encode. It rejects any string that does not have
// exactly the canonical field layout.
func ParseStateKey(s string) (StateKey, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 8 {
		return StateKey{}, fmt.Errorf("state key %q: want 8 fields, got %d", s, len(parts))
	}

	var key StateKey
	var err error
	if key.MachineID, err = parseIntField(parts[0], 'M'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	if key.Priority, err = parseIntField(parts[1], 'P'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	if key.Shift, err = parseIntField(parts[2], 'S'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	if key.TimeBucket, err = parseIntField(parts[3], 'T'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	if key.GapBucket, err = parseIntField(parts[4], 'G'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	if key.WorkerIdle, err = parseDigitField(parts[5], 'A'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	if key.SkillBuckets, err = parseDigitField(parts[6], 'K'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	if key.MachineStatuses, err = parseDigitField(parts[7], 'U'); err != nil {
		return StateKey{}, fmt.Errorf("state key %q: %w", s, err)
	}
	return key, nil
}

func parseIntField(field string, prefix byte) (int, error) {
	if len(field) < 2 || field[0] != prefix {
		return 0, fmt.Errorf("field %q: want prefix %q", field, string(prefix))
	}
	v, err := strconv.Atoi(field[1:])
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}

func parseDigitField(field string, prefix byte) ([]int, error) {
	if len(field) < 1 || field[0] != prefix {
		return nil, fmt.Errorf("field %q: want prefix %q", field, string(prefix))
	}
	digits := field[1:]
	vals := make([]int, len(digits))
	for i := 0; i < len(digits); i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return nil, fmt.Errorf("field %q: non-digit %q", field, string(d))
		}
		vals[i] = int(d - '0')
	}
	return vals, nil
}
