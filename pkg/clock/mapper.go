package clock

import "sync"

// Mapper converts timestamps taken by a remote device into local MonoTime,
// following the device clock's offset and drift: local = a*device + b.
type Mapper interface {
	// Observe records a device timestamp and the local time it was received.
	Observe(device int64, local MonoTime)

	// Map converts a device timestamp to local time.
	Map(device int64) MonoTime

	// Snapshot returns the current (a, b) coefficients.
	Snapshot() (a float64, b float64)
}

// Drift bounds applied to the fitted slope. Crystal drift stays well inside
// 1000 ppm; anything beyond that is jitter.
const (
	minSlope = 0.999
	maxSlope = 1.001
)

// AffineMapper fits the device clock with rolling least squares over the last
// window observations.
//
// Observations are taken relative to the first pair seen, so the sums stay
// small enough for float64 even with Unix-nanosecond device clocks.
type AffineMapper struct {
	mu sync.RWMutex

	originDev   int64
	originLocal MonoTime
	anchored    bool

	// fit of (local-originLocal) = a*(device-originDev) + b
	a float64
	b float64

	window []pair
	next   int
	count  int

	sumX, sumY, sumXX, sumXY float64
}

type pair struct {
	x, y float64
}

// NewAffineMapper creates a mapper over a rolling window. Windows below 2 are
// raised to 10.
func NewAffineMapper(window int) *AffineMapper {
	if window < 2 {
		window = 10
	}
	return &AffineMapper{
		a:      1,
		window: make([]pair, window),
	}
}

// Observe adds a (device, local) pair and refits.
func (m *AffineMapper) Observe(device int64, local MonoTime) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.anchored {
		m.originDev, m.originLocal, m.anchored = device, local, true
	}
	p := pair{
		x: float64(device - m.originDev),
		y: float64(local - m.originLocal),
	}

	if m.count == len(m.window) {
		old := m.window[m.next]
		m.sumX -= old.x
		m.sumY -= old.y
		m.sumXX -= old.x * old.x
		m.sumXY -= old.x * old.y
	} else {
		m.count++
	}
	m.window[m.next] = p
	m.next = (m.next + 1) % len(m.window)

	m.sumX += p.x
	m.sumY += p.y
	m.sumXX += p.x * p.x
	m.sumXY += p.x * p.y

	m.refit()
}

// refit must be called with mu held.
func (m *AffineMapper) refit() {
	n := float64(m.count)
	if m.count < 2 {
		// offset only
		m.a = 1
		m.b = m.sumY/n - m.sumX/n
		return
	}

	det := m.sumXX*n - m.sumX*m.sumX
	if det < 1e-9 {
		// every device timestamp identical, keep the slope
		m.b = (m.sumY - m.a*m.sumX) / n
		return
	}

	a := (m.sumXY*n - m.sumX*m.sumY) / det
	if a < minSlope {
		a = minSlope
	}
	if a > maxSlope {
		a = maxSlope
	}
	m.a = a
	m.b = (m.sumY - a*m.sumX) / n
}

// Map converts a device timestamp with the current fit. Before the first
// observation it returns the device timestamp unchanged.
func (m *AffineMapper) Map(device int64) MonoTime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.anchored {
		return MonoTime(device)
	}
	x := float64(device - m.originDev)
	return m.originLocal + MonoTime(m.a*x+m.b)
}

// Snapshot returns the current coefficients relative to the first observation.
func (m *AffineMapper) Snapshot() (a float64, b float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.a, m.b
}

// IdentityMapper assumes the device clock already is the local clock.
type IdentityMapper struct{}

// Observe does nothing.
func (IdentityMapper) Observe(int64, MonoTime) {}

// Map returns device unchanged.
func (IdentityMapper) Map(device int64) MonoTime { return MonoTime(device) }

// Snapshot returns the identity transform.
func (IdentityMapper) Snapshot() (float64, float64) { return 1, 0 }
