package metric

// BallBound is a bounding ball: a center point and the radius of the
// smallest ball around it covering every point the bound has absorbed.
type BallBound struct {
	Center []float64
	Radius float64
}

// NewBallBound returns an empty bound of the given dimensionality.
func NewBallBound(dim int) *BallBound {
	return &BallBound{Center: make([]float64, dim)}
}

// Dim returns the bound's dimensionality.
func (b *BallBound) Dim() int {
	return len(b.Center)
}

// SetCenter copies p into the bound's center.
func (b *BallBound) SetCenter(p []float64) {
	copy(b.Center, p)
}

// MidDistanceSq returns the squared distance from p to the bound's
// midpoint. Nearest-leaf routing uses this rather than raw point
// distances so that every leaf is compared through its representative.
func (b *BallBound) MidDistanceSq(m Metric, p []float64) float64 {
	return m.DistanceSq(b.Center, p)
}

// ExpandRadius grows the radius to cover p if it lies outside the ball.
func (b *BallBound) ExpandRadius(m Metric, p []float64) {
	if d := m.Distance(b.Center, p); d > b.Radius {
		b.Radius = d
	}
}

// Contains reports whether p lies within the ball.
func (b *BallBound) Contains(m Metric, p []float64) bool {
	return m.Distance(b.Center, p) <= b.Radius
}

// Clone returns a deep copy of the bound.
func (b *BallBound) Clone() *BallBound {
	c := NewBallBound(len(b.Center))
	copy(c.Center, b.Center)
	c.Radius = b.Radius
	return c
}
