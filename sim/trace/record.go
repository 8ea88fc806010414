// Package trace provides timeline-snapshot recording for rendering and
// post-hoc analysis. It holds pure data types with no dependency on the
// simulator.
package trace

// Snapshot captures the floor at one notable simulated instant: an
// assignment, the moment before a time advance or a completion releases its
// resources, or a periodic tick.
type Snapshot struct {
	// Time is the simulated clock in minutes.
	Time float64 `json:"time"`
	// Shift is the shift index at Time.
	Shift int `json:"shift_index"`
	// Assignments holds, per machine, the bound worker id or -1.
	Assignments []int `json:"machine_assignments"`
	// Skills holds, per machine, the bound worker's skill on that machine's
	// type, or -1 when unassigned.
	Skills []float64 `json:"worker_skills"`
	// Statuses holds, per machine, the status name (idle/busy/broken/maintenance).
	Statuses []string `json:"machine_statuses"`
	// ProducedGoodParts is the cumulative good-part count at Time.
	ProducedGoodParts int `json:"produced_good_parts"`
	// Episode tags the snapshot with its training episode (1-based), set by
	// the driver when it keeps a recorded timeline.
	Episode int `json:"episode_number,omitempty"`
}
