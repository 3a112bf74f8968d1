package spi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixtureModel struct {
	turns []Turn
	next  int
}

func (f *fixtureModel) Turn(ctx context.Context, messages []Message, tools []ToolSpec, stop StopCondition) (Turn, error) {
	t := f.turns[f.next]
	f.next++
	return t, nil
}

func TestFixtureModelReturnsTextOnlyTurn(t *testing.T) {
	m := &fixtureModel{turns: []Turn{
		{TextBlocks: []string{"let me think"}, StopReason: StopReasonEndTurn},
	}}

	turn, err := m.Turn(context.Background(), []Message{{Role: RoleUser, Content: "hello"}}, nil, StopCondition{MaxTokens: 1024})
	require.NoError(t, err)
	assert.Nil(t, turn.ToolCall)
	assert.Equal(t, StopReasonEndTurn, turn.StopReason)
	assert.Equal(t, []string{"let me think"}, turn.TextBlocks)
}

func TestFixtureModelReturnsToolCallTurn(t *testing.T) {
	m := &fixtureModel{turns: []Turn{
		{
			ToolCall:   &ToolCallIntent{Name: "read_file", Input: map[string]interface{}{"path": "/tmp/a.txt"}},
			StopReason: StopReasonToolUse,
			TokenUsage: TokenUsage{InputTokens: 120, OutputTokens: 30},
		},
	}}

	turn, err := m.Turn(context.Background(), nil, []ToolSpec{{Name: "read_file"}}, StopCondition{})
	require.NoError(t, err)
	require.NotNil(t, turn.ToolCall)
	assert.Equal(t, "read_file", turn.ToolCall.Name)
	assert.Equal(t, 150, turn.TokenUsage.InputTokens+turn.TokenUsage.OutputTokens)
}

func TestMessageRolesAreDistinctStrings(t *testing.T) {
	roles := map[Role]bool{RoleSystem: true, RoleUser: true, RoleAssistant: true, RoleTool: true}
	assert.Len(t, roles, 4)
}
