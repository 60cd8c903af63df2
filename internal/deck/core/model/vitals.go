package model

// Vitals are the simulated health metrics of the panel.
type Vitals struct {
	CPU         float64 `json:"cpu"`
	Memory      float64 `json:"memory"`
	Uptime      string  `json:"uptime"`
	Connections int     `json:"connections"`
}

// InitialVitals are the values the panel boots with.
func InitialVitals() Vitals {
	return Vitals{
		CPU:         12,
		Memory:      45,
		Uptime:      "4d 12h 31m",
		Connections: 124,
	}
}

// Bounds is an inclusive [Min, Max] range.
type Bounds struct {
	Min float64
	Max float64
}

// Clamp limits v to b.
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Contains reports whether v lies within b.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

var (
	// CPUBounds and MemoryBounds are the jitter floors and ceilings.
	CPUBounds    = Bounds{Min: 5, Max: 95}
	MemoryBounds = Bounds{Min: 20, Max: 90}
)
