package cost

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/fiscal-cli/pkg/anthropic"
)

// PhaseCost is the accumulated usage of one narrative phase.
type PhaseCost struct {
	Phase        string  `json:"phase"`
	Calls        int     `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CacheRead    int64   `json:"cache_read_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Tracker accumulates usage across concurrent calls. The zero value is not
// usable; create one with NewTracker.
type Tracker struct {
	calc *Calculator

	mu     sync.Mutex
	phases map[string]*PhaseCost
}

// NewTracker creates a Tracker pricing usage with calc.
func NewTracker(calc *Calculator) *Tracker {
	return &Tracker{calc: calc, phases: map[string]*PhaseCost{}}
}

// Record prices one call, logs its usage and adds it to phase.
func (t *Tracker) Record(model, phase string, u anthropic.TokenUsage) {
	if t == nil {
		return
	}
	usd := t.calc.Claude(model, u)
	zap.L().Info("cost: call usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("cost_usd", usd),
	)

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.phases[phase]
	if !ok {
		p = &PhaseCost{Phase: phase}
		t.phases[phase] = p
	}
	p.Calls++
	p.InputTokens += u.InputTokens
	p.OutputTokens += u.OutputTokens
	p.CacheRead += u.CacheReadInputTokens
	p.CostUSD += usd
}

// Phases returns per-phase totals sorted by phase name.
func (t *Tracker) Phases() []PhaseCost {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PhaseCost, 0, len(t.phases))
	for _, p := range t.phases {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phase < out[j].Phase })
	return out
}

// Total returns the summed cost of every phase.
func (t *Tracker) Total() float64 {
	var total float64
	for _, p := range t.Phases() {
		total += p.CostUSD
	}
	return total
}

// Log writes the per-phase totals at info level.
func (t *Tracker) Log() {
	for _, p := range t.Phases() {
		zap.L().Info("cost: phase usage",
			zap.String("phase", p.Phase),
			zap.Int("calls", p.Calls),
			zap.Int64("input_tokens", p.InputTokens),
			zap.Int64("output_tokens", p.OutputTokens),
			zap.Float64("cost_usd", p.CostUSD),
		)
	}
}
