package uac

// FrameSizer chooses the number of capture sample-groups to send in each
// transport frame from the receive-FIFO occupancy.
//
// The rule is a three-way step around the nominal size N with delta d:
//
//	occupancy > N+1  →  N+d
//	occupancy < N    →  N-d
//	otherwise        →  N
//
// and the result is clamped to the configured maximum. It drains a backlog
// and slows down when the FIFO runs low, so the host sees the bus rate.
type FrameSizer struct {
	nominal int
	delta   int
	max     int
	last    int
}

// NewFrameSizer creates a sizer with the given nominal size, delta and
// maximum, all in sample-groups. A max of zero or less disables the clamp.
func NewFrameSizer(nominal, delta, max int) *FrameSizer {
	s := &FrameSizer{delta: delta, max: max}
	s.SetNominal(nominal)
	return s
}

// SetNominal replaces the nominal frame size after a rate change.
func (s *FrameSizer) SetNominal(nominal int) {
	if nominal < 0 {
		nominal = 0
	}
	s.nominal = nominal
	s.last = nominal
}

// Nominal returns the nominal frame size.
func (s *FrameSizer) Nominal() int { return s.nominal }

// Delta returns the adjustment step.
func (s *FrameSizer) Delta() int { return s.delta }

// Max returns the clamp, or a value ≤ 0 if unclamped.
func (s *FrameSizer) Max() int { return s.max }

// Last returns the most recent size returned by Next.
func (s *FrameSizer) Last() int { return s.last }

// Next returns the frame size for the given receive-FIFO occupancy.
func (s *FrameSizer) Next(occupancy int) int {
	n := s.nominal
	switch {
	case occupancy > s.nominal+1:
		n += s.delta
	case occupancy < s.nominal:
		n -= s.delta
	}
	if s.max > 0 && n > s.max {
		n = s.max
	}
	if n < 0 {
		n = 0
	}
	s.last = n
	return n
}
