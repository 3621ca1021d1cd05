// Package tool defines the capability contract the conversation engine
// dispatches against: a named, described, schema-validated Execute function.
// Variants are data in a registry, not subclasses.
package tool

import "context"

// Tool is a callable capability offered to the completion model. Execute must
// be safe to skip on a cache hit: identical arguments are assumed to yield
// cacheable-equivalent results, unless the tool opts out via Cacheable.
type Tool interface {
	// Name returns the unique tool name offered to the model
	Name() string
	// Description returns the human/model-readable description
	Description() string
	// Schema returns the JSON schema for the tool's arguments
	Schema() map[string]any
	// Execute runs the tool. The engine injects the caller's network identity
	// under the "_clientIp" argument key; injected keys are excluded from
	// schema validation and cache hashing.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Cacheable is an optional interface for tools. A tool whose Execute has a
// side effect, or whose result depends on injected arguments, returns false
// so the engine never serves or stores a cached result for it. Tools that do
// not implement it are treated as cacheable.
type Cacheable interface {
	Cacheable() bool
}

// Error is a tool-level failure: invalid arguments, an unknown provider
// response, or an internal fault. It serializes as {"error": "..."} so it can
// be fed back to the model as a tool result and is never cached.
type Error struct {
	Message string `json:"error"`
}

// NewError creates a tool error
func NewError(message string) *Error {
	return &Error{Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

// ClientIPArg is the injected argument key carrying the caller's network
// identity into Execute.
const ClientIPArg = "_clientIp"

// SessionIDArg is the injected argument key carrying the conversation's
// session identifier. Like all underscore-prefixed keys it is invisible to
// schema validation and cache key derivation.
const SessionIDArg = "_sessionId"
