package steploop

import (
	"context"

	"github.com/artemgetmann/memv2/pkg/spi"
)

// reflectionPrompt is the forced no-tool turn injected after the
// validation-retry cap is hit or the repetition monitor fires (spec 4.7,
// steps 4 and 7): a short nudge to restate the plan rather than repeat the
// same failing action.
const reflectionPrompt = "Before continuing: restate what you have tried so far, why it did not work, and what you will try differently. Do not call a tool in this turn."

// runReflectionTurn appends the reflection prompt and, on success, the
// model's reply, to messages. A transport failure here is swallowed: the
// reflection turn is a nudge, not a required step, so the loop continues
// with the prompt alone rather than ending the session.
func (s *Session) runReflectionTurn(ctx context.Context, messages []spi.Message, stop spi.StopCondition) []spi.Message {
	messages = append(messages, spi.Message{Role: spi.RoleUser, Content: reflectionPrompt})
	if turn, err := s.model.Turn(ctx, messages, nil, stop); err == nil {
		messages = append(messages, assistantMessage(turn))
	}
	return messages
}
