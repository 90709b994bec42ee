// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package cost

import (
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/maintel/core"
)

// Per-1k-token rates in USD.
const (
	extractionInputRate  = 0.003
	extractionOutputRate = 0.015
	embeddingRate        = 0.00002
)

// rates maps call types to their per-1k-token price. Unknown call types
// are logged and dropped rather than priced at zero.
var rates = map[string]float64{
	"extraction_input":  extractionInputRate,
	"extraction_output": extractionOutputRate,
	"embedding":         embeddingRate,
}

// Summary aggregates recorded spend per call type.
type Summary struct {
	ByCallType map[string]CallTypeSummary
	TotalCost  float64
	TotalUnits int
}

// CallTypeSummary is the aggregate for one call type.
type CallTypeSummary struct {
	Calls int
	Units int
	Cost  float64
}

// Tracker accumulates priced usage entries. Recording never blocks
// callers beyond a mutex acquire and never returns an error; cost
// accounting must not interfere with pipeline progress.
type Tracker struct {
	mu      sync.Mutex
	entries []core.CostEntry
	now     func() time.Time
	logger  *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock sets the time source used to stamp entries.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker creates an empty cost tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a priced entry for units tokens of the given call type.
// Unknown call types are logged and swallowed.
func (t *Tracker) Record(callType string, units int) {
	rate, ok := rates[callType]
	if !ok {
		t.logger.Warn("unknown cost call type", "callType", callType, "units", units)
		return
	}
	if units < 0 {
		t.logger.Warn("negative unit count ignored", "callType", callType, "units", units)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, core.CostEntry{
		CallType: callType,
		Units:    units,
		Cost:     rate * float64(units) / 1000,
		At:       t.now().UTC(),
	})
}

// Summarize aggregates entries recorded at or after since. A zero since
// covers everything.
func (t *Tracker) Summarize(since time.Time) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := Summary{ByCallType: make(map[string]CallTypeSummary)}
	for _, e := range t.entries {
		if !since.IsZero() && e.At.Before(since) {
			continue
		}
		agg := summary.ByCallType[e.CallType]
		agg.Calls++
		agg.Units += e.Units
		agg.Cost += e.Cost
		summary.ByCallType[e.CallType] = agg
		summary.TotalCost += e.Cost
		summary.TotalUnits += e.Units
	}
	return summary
}

// EntryCount returns the number of recorded entries.
func (t *Tracker) EntryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
