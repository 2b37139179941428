// Package telemetry receives live host statistics and notifications from the
// backend's websocket and keeps the latest values in observable stores.
package telemetry

import (
	"math"
	"strconv"
	"sync"
)

// Stats is the latest host sample. Usage values are percentages.
type Stats struct {
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryUsage float64 `json:"memoryUsage"`
	MemoryUsed  uint64  `json:"memoryUsed"`
	MemoryTotal uint64  `json:"memoryTotal"`
}

// FormattedMemory renders "used / total", e.g. "1.5 GB / 8 GB".
func (s Stats) FormattedMemory() string {
	return FormatBytes(s.MemoryUsed) + " / " + FormatBytes(s.MemoryTotal)
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n in binary units with at most one decimal and no
// trailing ".0".
func FormatBytes(n uint64) string {
	if n == 0 {
		return "0 B"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

// StatsStore holds the most recent Stats.
type StatsStore struct {
	mu           sync.Mutex
	stats        Stats
	listeners    map[int]func(Stats)
	nextListener int
}

func NewStatsStore() *StatsStore {
	return &StatsStore{listeners: make(map[int]func(Stats))}
}

// Set replaces the current sample and notifies subscribers.
func (s *StatsStore) Set(stats Stats) {
	s.mu.Lock()
	s.stats = stats
	listeners := make([]func(Stats), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(stats)
	}
}

// Current returns the latest sample; zero until the first message.
func (s *StatsStore) Current() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Subscribe registers fn for every new sample and returns its remover.
func (s *StatsStore) Subscribe(fn func(Stats)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
