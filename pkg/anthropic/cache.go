package anthropic

// BuildCachedSystemBlocks wraps a system prompt in a single block with an
// ephemeral cache breakpoint. Follow-up turns in a review session resend the
// same prompt, so later calls read it from the prompt cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
