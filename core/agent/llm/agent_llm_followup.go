package llm

import (
	"context"
	"fmt"
)

const followUpSystemPrompt = `You polish follow-up emails for a travel agency.
Rewrite the draft so it reads naturally and warmly while keeping every
question and every factual detail intact. Keep the same language as the
draft. Output only the rewritten email body, no subject, no commentary.`

// PolishFollowUp rewrites a templated follow-up into a natural email body.
// On any model error the caller should fall back to the draft unchanged.
func (c *Client) PolishFollowUp(ctx context.Context, draft string, language string) (string, error) {
	userPrompt := fmt.Sprintf("Language: %s\n\nDraft:\n%s", language, draft)

	resp, err := c.CompleteWithSystem(ctx, followUpSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if resp == "" {
		return draft, nil
	}
	return resp, nil
}
