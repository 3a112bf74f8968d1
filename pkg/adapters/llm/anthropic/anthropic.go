// Package anthropic implements the Model SPI (pkg/spi.Model) against the
// Anthropic Messages API, grounded on the teacher's pkg/llms.AnthropicLLM
// client construction and content-block extraction, generalized here to
// carry tool-use turns instead of plain text completions.
package anthropic

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	memverrors "github.com/artemgetmann/memv2/pkg/errors"
	"github.com/artemgetmann/memv2/pkg/logging"
	"github.com/artemgetmann/memv2/pkg/spi"
)

// Model implements spi.Model over one Anthropic model ID.
type Model struct {
	client    *anthropic.Client
	modelID   anthropic.Model
	maxTokens int64
}

// Option configures a Model.
type Option func(*Model)

func WithMaxTokens(n int64) Option { return func(m *Model) { m.maxTokens = n } }

// New builds a Model using apiKey directly.
func New(apiKey string, modelID anthropic.Model, opts ...Option) *Model {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	m := &Model{client: &client, modelID: modelID, maxTokens: 4096}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewFromEnv builds a Model reading ANTHROPIC_API_KEY from the environment,
// failing fast the same way the teacher's NewAnthropicLLMFromConfig does
// when no key is configured anywhere.
func NewFromEnv(modelID anthropic.Model, opts ...Option) (*Model, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, memverrors.New(memverrors.InvalidInput, "ANTHROPIC_API_KEY is required")
	}
	return New(apiKey, modelID, opts...), nil
}

// Turn implements spi.Model.Turn: it renders the Model SPI's Message/
// ToolSpec shapes into one Anthropic Messages.New call and maps the
// response back into a spi.Turn. A leading spi.RoleSystem message (at most
// one; the step loop only ever builds one system/user prompt per session)
// becomes the request's System field rather than a message entry, since
// Anthropic carries system instructions out-of-band.
func (m *Model) Turn(ctx context.Context, messages []spi.Message, tools []spi.ToolSpec, stop spi.StopCondition) (spi.Turn, error) {
	logger := logging.GetLogger()

	var system string
	params := anthropic.MessageNewParams{
		Model:     m.modelID,
		MaxTokens: m.maxTokens,
	}
	if stop.MaxTokens > 0 {
		params.MaxTokens = int64(stop.MaxTokens)
	}

	for _, msg := range messages {
		if msg.Role == spi.RoleSystem && system == "" {
			system = msg.Content
			continue
		}
		params.Messages = append(params.Messages, toAnthropicMessage(msg))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if len(tools) > 0 {
		params.Tools = make([]anthropic.ToolUnionParam, 0, len(tools))
		for _, t := range tools {
			params.Tools = append(params.Tools, toAnthropicTool(t))
		}
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if stderrors.As(err, &apiErr) {
			logger.Error(ctx, "anthropic API error: status code %d", apiErr.StatusCode)
		}
		return spi.Turn{}, memverrors.Wrap(err, memverrors.TransportFailed, "anthropic messages.new failed")
	}
	if message == nil {
		return spi.Turn{}, memverrors.New(memverrors.TransportFailed, "anthropic returned a nil message")
	}

	return toSPITurn(message), nil
}

func toAnthropicMessage(msg spi.Message) anthropic.MessageParam {
	switch msg.Role {
	case spi.RoleAssistant:
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content))
	default:
		// Tool-result messages are carried back to the model as ordinary
		// user turns; the Model SPI doesn't distinguish tool-result framing
		// at the transport layer (spec 6: Adapter SPI output is plain text).
		return anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content))
	}
}

// toAnthropicTool converts a spi.ToolSpec's InputSchema (the core's
// _type/_required schemaField convention; see pkg/spi/validate.go) into
// Anthropic's JSON-schema tool parameter shape.
func toAnthropicTool(t spi.ToolSpec) anthropic.ToolUnionParam {
	properties := make(map[string]interface{}, len(t.InputSchema))
	var required []string

	for field, rawSpec := range t.InputSchema {
		spec, _ := rawSpec.(map[string]interface{})
		jsonType := "string"
		if wantType, ok := spec["_type"].(string); ok {
			jsonType = schemaJSONType(wantType)
		}
		properties[field] = map[string]interface{}{"type": jsonType}

		isRequired := true
		if r, ok := spec["_required"].(bool); ok {
			isRequired = r
		}
		if isRequired {
			required = append(required, field)
		}
	}

	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name: t.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		},
	}
}

func schemaJSONType(want string) string {
	switch want {
	case "number":
		return "number"
	case "bool":
		return "boolean"
	case "object":
		return "object"
	case "array":
		return "array"
	default:
		return "string"
	}
}

func toSPITurn(message *anthropic.Message) spi.Turn {
	turn := spi.Turn{
		TokenUsage: spi.TokenUsage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				turn.TextBlocks = append(turn.TextBlocks, block.Text)
			}
		case "tool_use":
			if turn.ToolCall == nil {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(block.Input), &input); err != nil {
					input = map[string]interface{}{}
				}
				turn.ToolCall = &spi.ToolCallIntent{Name: block.Name, Input: input}
			}
		}
	}

	turn.StopReason = toSPIStopReason(string(message.StopReason), turn.ToolCall != nil)
	return turn
}

func toSPIStopReason(anthropicReason string, hasToolCall bool) spi.StopReason {
	switch anthropicReason {
	case "tool_use":
		return spi.StopReasonToolUse
	case "max_tokens":
		return spi.StopReasonMaxTokens
	case "stop_sequence":
		return spi.StopReasonStopSequence
	default:
		if hasToolCall {
			return spi.StopReasonToolUse
		}
		return spi.StopReasonEndTurn
	}
}
