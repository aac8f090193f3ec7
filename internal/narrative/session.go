package narrative

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fiscal-cli/internal/briefing"
	"github.com/sells-group/fiscal-cli/pkg/anthropic"
)

// ErrNoReview is returned by Ask before any entity has been selected.
var ErrNoReview = eris.New("narrative: no entity under review")

// riskProfile is the part of a brief resent with every question.
type riskProfile struct {
	RiskLabel       string   `json:"risk_label"`
	RiskScore       float64  `json:"risk_score"`
	TotalSpend      float64  `json:"total_spend"`
	PrimaryIssue    string   `json:"primary_issue"`
	SupportingFlags []string `json:"supporting_flags"`
}

// Session is a follow-up dialogue about one entity at a time. Memory holds
// alternating user and assistant turns, trimmed to the configured length.
type Session struct {
	writer      *Writer
	builder     *briefing.Builder
	maxMessages int

	mu      sync.Mutex
	current *briefing.Brief
	memory  []anthropic.Message
}

// Start selects the entity under review and clears memory. Unknown keys
// return a *model.LookupError and leave the session unchanged.
func (s *Session) Start(key string) (briefing.Brief, error) {
	brief, err := s.builder.Brief(key)
	if err != nil {
		return briefing.Brief{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &brief
	s.memory = nil
	return brief, nil
}

// Current returns the brief under review, if any.
func (s *Session) Current() (briefing.Brief, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return briefing.Brief{}, false
	}
	return *s.current, true
}

// Ask sends question with the entity context block and the retained memory.
// A failed call leaves memory as it was.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return "", ErrNoReview
	}

	profile, err := render(riskProfile{
		RiskLabel:       string(s.current.RiskLabel),
		RiskScore:       s.current.RiskScore,
		TotalSpend:      s.current.TotalSpend,
		PrimaryIssue:    s.current.PrimaryIssue,
		SupportingFlags: s.current.SupportingFlags,
	})
	if err != nil {
		return "", err
	}

	name := s.current.Name
	if name == "" {
		name = s.current.Key
	}
	prompt := anthropic.Message{Role: "user", Content: fmt.Sprintf(reviewContextPrompt, name, profile, question)}
	msgs := trimMemory(append(append([]anthropic.Message{}, s.memory...), prompt), s.maxMessages)

	reply, err := s.writer.complete(ctx, "review", analystSystemPrompt, msgs)
	if err != nil {
		return "", err
	}

	s.memory = append(msgs, anthropic.Message{Role: "assistant", Content: reply})
	return reply, nil
}

// History returns a copy of the retained turns.
func (s *Session) History() []anthropic.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]anthropic.Message, len(s.memory))
	copy(out, s.memory)
	return out
}

// Reset clears the entity under review and the memory.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.memory = nil
}

// trimMemory keeps the last n messages, then drops leading assistant turns
// so the conversation always opens with a user message. n <= 0 keeps all.
func trimMemory(msgs []anthropic.Message, n int) []anthropic.Message {
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	for len(msgs) > 1 && msgs[0].Role != "user" {
		msgs = msgs[1:]
	}
	return msgs
}
