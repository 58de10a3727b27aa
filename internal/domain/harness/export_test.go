package harness

import "time"

// SetStopGrace shortens how long Run waits on a scenario that ignores
// cancellation.
func (r *Runner) SetStopGrace(d time.Duration) { r.grace = d }
