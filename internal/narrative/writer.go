// Package narrative turns briefs and snapshots into prose through an
// opaque text-completion client.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/briefing"
	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/cost"
	"github.com/sells-group/fiscal-cli/internal/memocache"
	"github.com/sells-group/fiscal-cli/internal/resilience"
	"github.com/sells-group/fiscal-cli/pkg/anthropic"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = eris.New("narrative: empty completion")

// Option configures a Writer.
type Option func(*Writer)

// WithPolicy overrides the retry policy used for each completion.
func WithPolicy(p resilience.Policy) Option {
	return func(w *Writer) { w.policy = p }
}

// WithRateLimit overrides the request pacing. rps <= 0 disables pacing.
func WithRateLimit(rps float64) Option {
	return func(w *Writer) { w.limiter = newLimiter(rps) }
}

// WithCostTracker records the usage of every completion in t.
func WithCostTracker(t *cost.Tracker) Option {
	return func(w *Writer) { w.costs = t }
}

// WithCache reuses memos from c for identical requests. Review turns are
// never cached.
func WithCache(c memocache.Cache) Option {
	return func(w *Writer) { w.cache = c }
}

// Writer drafts memos and explanations. It is safe for concurrent use.
type Writer struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	concurrency int
	memoryTurns int
	limiter     *rate.Limiter
	policy      resilience.Policy
	costs       *cost.Tracker
	cache       memocache.Cache
}

// NewWriter builds a Writer from the anthropic and narrative settings.
func NewWriter(client anthropic.Client, ai config.AnthropicConfig, cfg config.NarrativeConfig, opts ...Option) *Writer {
	w := &Writer{
		client:      client,
		model:       ai.Model,
		maxTokens:   ai.MaxTokens,
		temperature: ai.Temperature,
		concurrency: max(cfg.Concurrency, 1),
		memoryTurns: cfg.MemoryTurns,
		limiter:     newLimiter(cfg.RequestsPerSecond),
		policy:      resilience.PolicyFromConfig(cfg),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
}

// EntityMemo drafts a formal cabinet briefing note for one entity.
func (w *Writer) EntityMemo(ctx context.Context, brief briefing.Brief) (string, error) {
	body, err := render(brief)
	if err != nil {
		return "", err
	}
	return w.cached(ctx, "entity_memo", memoSystemPrompt, []anthropic.Message{
		{Role: "user", Content: fmt.Sprintf(entityMemoPrompt, body)},
	})
}

// Explain produces a short analytical explanation of one entity.
func (w *Writer) Explain(ctx context.Context, brief briefing.Brief) (string, error) {
	body, err := render(brief)
	if err != nil {
		return "", err
	}
	return w.cached(ctx, "explain", analystSystemPrompt, []anthropic.Message{
		{Role: "user", Content: fmt.Sprintf(explainPrompt, body)},
	})
}

// SnapshotMemo drafts a government-wide overview from the executive snapshot.
func (w *Writer) SnapshotMemo(ctx context.Context, snap aggregate.ExecutiveSnapshot) (string, error) {
	body, err := render(snap)
	if err != nil {
		return "", err
	}
	return w.cached(ctx, "snapshot_memo", memoSystemPrompt, []anthropic.Message{
		{Role: "user", Content: fmt.Sprintf(snapshotMemoPrompt, body)},
	})
}

// MemoResult is one entry of a memo pack. Error is set when that entity's
// memo could not be drafted.
type MemoResult struct {
	Key   string `json:"entity_key"`
	Name  string `json:"name,omitempty"`
	Memo  string `json:"memo,omitempty"`
	Error string `json:"error,omitempty"`
}

// CriticalPack drafts a memo for every brief with bounded concurrency.
// Results keep the order of briefs. A failed memo is recorded on its result
// and does not stop the others; only context cancellation is returned.
func (w *Writer) CriticalPack(ctx context.Context, briefs []briefing.Brief) ([]MemoResult, error) {
	results := make([]MemoResult, len(briefs))
	if len(briefs) == 0 {
		return results, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(w.concurrency)

	var failed atomic.Int64
	for i, b := range briefs {
		results[i] = MemoResult{Key: b.Key, Name: b.Name}
		g.Go(func() error {
			memo, err := w.EntityMemo(ctx, b)
			if err != nil {
				failed.Add(1)
				results[i].Error = err.Error()
				zap.L().Error("narrative: memo failed", zap.String("entity", b.Key), zap.Error(err))
				return nil
			}
			results[i].Memo = memo
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("narrative: memo pack complete",
		zap.Int("entities", len(briefs)),
		zap.Int64("failed", failed.Load()),
	)
	if err := ctx.Err(); err != nil {
		return results, eris.Wrap(err, "narrative: memo pack")
	}
	return results, nil
}

// NewSession starts an empty review session backed by this writer.
func (w *Writer) NewSession(builder *briefing.Builder) *Session {
	return &Session{writer: w, builder: builder, maxMessages: w.memoryTurns}
}

// cached serves the completion from the memo cache when one is configured.
// Cache failures are logged and fall through to the model.
func (w *Writer) cached(ctx context.Context, phase, system string, msgs []anthropic.Message) (string, error) {
	if w.cache == nil {
		return w.complete(ctx, phase, system, msgs)
	}
	parts := []string{w.model, phase, fmt.Sprint(w.temperature), fmt.Sprint(w.maxTokens), system}
	for _, m := range msgs {
		parts = append(parts, m.Role, m.Content)
	}
	key := memocache.Key(parts...)

	memo, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("narrative: memo cache get failed", zap.String("phase", phase), zap.Error(err))
	}
	if ok {
		zap.L().Debug("narrative: memo cache hit", zap.String("phase", phase))
		return memo, nil
	}

	text, err := w.complete(ctx, phase, system, msgs)
	if err != nil {
		return "", err
	}
	if err := w.cache.Set(ctx, key, text); err != nil {
		zap.L().Warn("narrative: memo cache set failed", zap.String("phase", phase), zap.Error(err))
	}
	return text, nil
}

func (w *Writer) complete(ctx context.Context, phase, system string, msgs []anthropic.Message) (string, error) {
	temp := w.temperature
	req := anthropic.MessageRequest{
		Model:       w.model,
		MaxTokens:   w.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(system, "5m"),
		Messages:    msgs,
		Temperature: &temp,
	}

	resp, err := resilience.Call(ctx, w.policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "narrative: rate limit")
		}
		return w.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", eris.Wrapf(err, "narrative: %s", phase)
	}

	w.costs.Record(w.model, phase, resp.Usage)
	if resp.Truncated() {
		zap.L().Warn("narrative: reply hit max tokens", zap.String("phase", phase), zap.Int64("max_tokens", w.maxTokens))
	}
	text := resp.Text()
	if text == "" {
		return "", eris.Wrapf(ErrEmptyCompletion, "narrative: %s", phase)
	}
	return text, nil
}

func render(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "narrative: render context")
	}
	return string(b), nil
}
