// Package anthropic adapts the Claude Messages API to the single-shot text
// completion surface the narrative writer and review sessions use.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Conversation roles. Any other role is sent as RoleUser.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StopMaxTokens is the stop reason reported when a reply hit MaxTokens.
const StopMaxTokens = "max_tokens"

// Client completes one prompt. Implementations must be safe for concurrent use.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is one completion call.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Temperature *float64
}

// SystemBlock is a system prompt block, optionally marked as a cache breakpoint.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl marks a block for the ephemeral prompt cache.
type CacheControl struct {
	TTL string // "5m" or "1h"
}

// Message is one conversation turn.
type Message struct {
	Role    string
	Content string
}

// MessageResponse carries the reply text blocks and the usage the cost
// tracker prices.
type MessageResponse struct {
	ID         string
	StopReason string
	Content    []ContentBlock
	Usage      TokenUsage
}

// ContentBlock is one reply block. Only text blocks are kept by Text.
type ContentBlock struct {
	Type string
	Text string
}

// TokenUsage is the token accounting of one call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Text joins the text blocks of the reply and trims surrounding space.
func (r *MessageResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "" || c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// Truncated reports whether the reply stopped at the token limit.
func (r *MessageResponse) Truncated() bool {
	return r.StopReason == StopMaxTokens
}

type sdkClient struct {
	api sdk.Client
}

// NewClient returns a Client backed by anthropic-sdk-go. opts are applied
// after the API key, so tests can point it at an httptest server.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{api: sdk.NewClient(opts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.api.Messages.New(ctx, toParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDKMessage(msg), nil
}

func toParams(req MessageRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}
	if len(req.System) > 0 {
		params.System = toSDKSystemBlocks(req.System)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			out[i] = sdk.NewAssistantMessage(block)
		} else {
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func toSDKSystemBlocks(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{Text: b.Text}
		if b.CacheControl == nil {
			continue
		}
		cc := sdk.NewCacheControlEphemeralParam()
		if b.CacheControl.TTL != "" {
			cc.TTL = sdk.CacheControlEphemeralTTL(b.CacheControl.TTL)
		}
		out[i].CacheControl = cc
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	resp := &MessageResponse{
		ID:         msg.ID,
		StopReason: string(msg.StopReason),
		Content:    make([]ContentBlock, 0, len(msg.Content)),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
	for _, b := range msg.Content {
		resp.Content = append(resp.Content, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return resp
}
