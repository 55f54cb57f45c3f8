package appointment

import "time"

// Interval is a half-open [Start, End) range. Start == End is a valid
// zero-duration interval.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() {
		return Interval{}, ErrStartRequired
	}
	if end.Before(start) {
		return Interval{}, ErrInvalidRange
	}
	return Interval{Start: start, End: end}, nil
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps applies the booking clash rule: the half-open ranges intersect, or
// both begin at the same instant. The second clause makes two zero-duration
// intervals at the same start collide.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.Start.Equal(other.Start) {
		return true
	}
	return iv.Start.Before(other.End) && iv.End.After(other.Start)
}
