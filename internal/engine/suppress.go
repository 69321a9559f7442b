package engine

// Suppressor tracks per-rule suppression windows.
//
// A rule armed at time T with window W is suppressed for every firing
// with timestamp in [T, T+W). Each engine owns its own Suppressor, so a
// window in one perspective never affects another.
type Suppressor struct {
	windows map[string]window
}

// window is the half-open interval [start, until).
type window struct {
	start, until int64
}

// NewSuppressor creates an empty suppressor.
func NewSuppressor() *Suppressor {
	return &Suppressor{windows: make(map[string]window)}
}

// Suppressed reports whether ruleID is inside an armed window at now.
func (s *Suppressor) Suppressed(ruleID string, now int64) bool {
	w, ok := s.windows[ruleID]
	return ok && w.start <= now && now < w.until
}

// Arm opens a window of windowMs for ruleID starting at now.
// A non-positive window is a no-op.
func (s *Suppressor) Arm(ruleID string, now, windowMs int64) {
	if windowMs <= 0 {
		return
	}
	s.windows[ruleID] = window{start: now, until: now + windowMs}
}

// Armed returns the number of rules that have ever been armed.
func (s *Suppressor) Armed() int {
	return len(s.windows)
}
