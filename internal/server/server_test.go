package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fiscal-cli/internal/aggregate"
	"github.com/sells-group/fiscal-cli/internal/briefing"
	"github.com/sells-group/fiscal-cli/internal/config"
	"github.com/sells-group/fiscal-cli/internal/model"
	"github.com/sells-group/fiscal-cli/internal/narrative"
	"github.com/sells-group/fiscal-cli/internal/resilience"
	"github.com/sells-group/fiscal-cli/internal/scorer"
	"github.com/sells-group/fiscal-cli/pkg/anthropic"
	anthropicmocks "github.com/sells-group/fiscal-cli/pkg/anthropic/mocks"
)

func testAggregator(t *testing.T) *aggregate.Aggregator {
	t.Helper()
	strengths := []model.Strength{"very weak", "weak", "moderate", "strong", "very strong"}
	var entities []model.Entity
	for i := 0; i < 8; i++ {
		entities = append(entities, model.Entity{
			Key:             fmt.Sprintf("entity %d", i),
			Name:            fmt.Sprintf("Entity %d", i),
			AgencyCategory:  model.CategoryMinistry,
			TotalSpend:      float64(100 * (i + 1)),
			FiscalRiskScore: float64(i * 12),
			EfficiencyProxy: float64(8-i) / 8,
			OutcomeStrength: strengths[(8-i)%5],
			BudgetPressure:  i >= 6,
			EfficiencyRank:  i + 1,
		})
	}
	entities[7].FiscalRiskLabel = model.RiskHigh
	a, err := aggregate.New(scorer.New(scorer.DefaultScorerConfig()), entities)
	require.NoError(t, err)
	return a
}

func newTestServer(t *testing.T, narrator Narrator) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	srv := New(testAggregator(t), Options{
		Narrator:   narrator,
		Gatherer:   reg,
		Metrics:    NewMetrics(reg),
		TopN:       3,
		SnapshotID: "snap-1",
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func post(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil) //nolint:gosec
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	var body map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(8), body["entities"])
	assert.Equal(t, "snap-1", body["snapshot_id"])
}

func TestSnapshot(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	var snap aggregate.ExecutiveSnapshot
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/snapshot", &snap))
	assert.Equal(t, 8, snap.EntityCount)
	assert.Equal(t, 1, snap.HighRiskCount)
}

func TestScores(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var all []aggregate.UnifiedRow
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/scores", &all))
	assert.Len(t, all, 8)

	var critical []aggregate.UnifiedRow
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/scores?tier=critical", &critical))
	for _, r := range critical {
		require.NotNil(t, r.Score)
		assert.Equal(t, scorer.TierCritical, r.Score.UnifiedTier)
	}

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/scores?tier=severe", &errBody))
	assert.Contains(t, errBody["error"], "unknown tier")
}

func TestEntityAndBrief(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var row aggregate.UnifiedRow
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/entities/Entity%207", &row))
	assert.Equal(t, "entity 7", row.Key)
	require.NotNil(t, row.Score)

	var brief map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/entities/entity%207/brief", &brief))
	assert.Equal(t, "Escalate to Cabinet review", brief["suggested_action"])

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/entities/treasury", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/entities/treasury/brief", nil))
}

func TestViews(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var index map[string][]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/views", &index))
	assert.Contains(t, index["risk"], "watchlist")

	var top []map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/views/efficiency/top-efficient", &top))
	assert.Len(t, top, 3)
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/views/efficiency/top-efficient?n=5", &top))
	assert.Len(t, top, 5)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/views/efficiency/top-efficient?n=x", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/views/benchmark/peers", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/views/benchmark/peers?category=Ministry", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/views/spending/capex-heavy?threshold=0.2", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/views/spending/capex-heavy?threshold=-1", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/views/spending/capex-heavy?threshold=NaN", nil))
	assert.Contains(t, index["spending"], "low-outcome")
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/views/risk/nope", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/views/weather/today", nil))
}

func TestMemoRoutes_NoNarrator(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts.URL+"/api/v1/entities/entity%207/memo", nil))
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts.URL+"/api/v1/snapshot/memo", nil))
	assert.Equal(t, http.StatusServiceUnavailable, post(t, ts.URL+"/api/v1/critical/memos", nil))
}

func testWriter(client anthropic.Client) *narrative.Writer {
	return narrative.NewWriter(client,
		config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 256},
		config.NarrativeConfig{Concurrency: 2},
		narrative.WithPolicy(resilience.Policy{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	)
}

func TestEntityMemo(t *testing.T) {
	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, `"entity_key": "entity 7"`)
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "Escalate Entity 7."}},
	}, nil).Once()

	ts, reg := newTestServer(t, testWriter(aiClient))

	var out narrative.MemoResult
	assert.Equal(t, http.StatusOK, post(t, ts.URL+"/api/v1/entities/entity%207/memo", &out))
	assert.Equal(t, "entity 7", out.Key)
	assert.Equal(t, "Escalate Entity 7.", out.Memo)

	assert.Equal(t, http.StatusNotFound, post(t, ts.URL+"/api/v1/entities/ghost/memo", nil))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["fiscal_memo_duration_seconds"])
	assert.True(t, names["fiscal_http_requests_total"])
}

func TestSnapshotMemo_UpstreamFailure(t *testing.T) {
	aiClient := anthropicmocks.NewMockClient(t)
	aiClient.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, errors.New("upstream exploded")).Once()

	ts, _ := newTestServer(t, testWriter(aiClient))
	var body map[string]string
	assert.Equal(t, http.StatusBadGateway, post(t, ts.URL+"/api/v1/snapshot/memo", &body))
	assert.Contains(t, body["error"], "upstream exploded")
}

type stubNarrator struct {
	briefs []briefing.Brief
	err    error
}

func (n *stubNarrator) EntityMemo(context.Context, briefing.Brief) (string, error) {
	return "", n.err
}

func (n *stubNarrator) SnapshotMemo(context.Context, aggregate.ExecutiveSnapshot) (string, error) {
	return "", n.err
}

func (n *stubNarrator) CriticalPack(_ context.Context, briefs []briefing.Brief) ([]narrative.MemoResult, error) {
	n.briefs = briefs
	if n.err != nil {
		return nil, n.err
	}
	out := make([]narrative.MemoResult, len(briefs))
	for i, b := range briefs {
		out[i] = narrative.MemoResult{Key: b.Key, Memo: "memo for " + b.Key}
	}
	return out, nil
}

func TestCriticalMemos(t *testing.T) {
	stub := &stubNarrator{}
	ts, _ := newTestServer(t, stub)

	var critical []briefing.Brief
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/critical", &critical))

	var results []narrative.MemoResult
	assert.Equal(t, http.StatusOK, post(t, ts.URL+"/api/v1/critical/memos", &results))
	require.Len(t, results, len(critical))
	assert.Len(t, stub.briefs, len(critical))
	for i := range results {
		assert.Equal(t, critical[i].Key, results[i].Key)
	}
}

func TestMemo_Timeout(t *testing.T) {
	ts, _ := newTestServer(t, &stubNarrator{err: fmt.Errorf("narrative: entity memo: %w", context.DeadlineExceeded)})
	assert.Equal(t, http.StatusGatewayTimeout, post(t, ts.URL+"/api/v1/entities/entity%200/memo", nil))
}
