package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// BuildCachedSystemBlocks wraps a shared system prompt in a single block
// with a 1-hour cache breakpoint. The narrative prompt and the email review
// rubric are both sent this way: every request in a run reuses one block, so
// only the first pays the cache write.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: "1h"},
		},
	}
}

// PrimerRequest sends one sequential message before a batch is submitted so
// the cache-controlled system blocks are written exactly once. Batch items
// that carry the same blocks then read the warm cache instead of racing to
// write it. The response body is usually discarded; its usage carries the
// cache-creation token count for cost attribution.
func PrimerRequest(ctx context.Context, client Client, req MessageRequest) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: primer request")
	}
	return resp, nil
}
