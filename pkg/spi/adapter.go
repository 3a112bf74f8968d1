// Package spi defines the two narrow service-provider interfaces the step
// loop is written against: Adapter (one external tool/domain) and Model
// (one LLM transport). Neither interface depends on any concrete
// implementation; pkg/adapters/tool and pkg/adapters/llm provide
// reference wirings.
package spi

import "context"

// ToolSpec declares a tool's name, input shape, and optional local doc
// paths the strict-mode critic may consult for domain context.
type ToolSpec struct {
	Name         string
	InputSchema  map[string]interface{} // JSON-schema-shaped description of the payload
	DocsManifest []string
}

// ExecuteResult is the outcome of one Adapter.Execute call.
type ExecuteResult struct {
	OutputText string
	ErrorText  string // empty means success
	StateDelta map[string]interface{}
}

// Adapter is what the core requires of each domain (spec 6): a tool spec
// for prompt construction and shape validation, a synchronous execute
// call, a way to capture final state for the referee, and a stable short
// domain key used throughout retrieval and lesson scoping.
type Adapter interface {
	ToolSpec() ToolSpec
	Execute(ctx context.Context, payload map[string]interface{}) (ExecuteResult, error)
	CaptureFinalState(ctx context.Context) (string, error)
	DomainKey() string
}
