package spi

import "context"

// Role identifies a message's speaker in a Model SPI conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn-history entry passed to Model.Turn.
type Message struct {
	Role    Role
	Content string
}

// StopCondition bounds how many tokens the model may produce in one Turn,
// independent of max_steps (which bounds tool-executing turns).
type StopCondition struct {
	MaxTokens int
}

// StopReason explains why a Turn ended.
type StopReason string

const (
	StopReasonEndTurn      StopReason = "end_turn"
	StopReasonToolUse      StopReason = "tool_use"
	StopReasonMaxTokens    StopReason = "max_tokens"
	StopReasonStopSequence StopReason = "stop_sequence"
)

// ToolCallIntent is the model's request to invoke exactly one tool.
type ToolCallIntent struct {
	Name  string
	Input map[string]interface{}
}

// TokenUsage reports the transport's token accounting for one Turn.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Turn is what a Model SPI call returns: optional narration text and
// zero-or-one tool-call intent.
type Turn struct {
	TextBlocks []string
	ToolCall   *ToolCallIntent
	StopReason StopReason
	TokenUsage TokenUsage
}

// Model is what the core requires of each LLM transport (spec 6). Turn
// must be idempotent-safe under retry at the transport layer; the core
// never replays a Turn call itself.
type Model interface {
	Turn(ctx context.Context, messages []Message, tools []ToolSpec, stop StopCondition) (Turn, error)
}
