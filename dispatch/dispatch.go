// Package dispatch resolves capability names to callable handlers and carries
// their results back in one of the known response shapes.
package dispatch

import "context"

// Descriptor describes a capability for prompt rendering and perception.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Group       string                 `json:"group"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ResponseShape is the discriminator tag for Response.
type ResponseShape string

const (
	// ShapeEnvelope is a structured envelope carrying text blocks. The text
	// may itself hold an encoded object with a "result" key.
	ShapeEnvelope ResponseShape = "envelope"
	// ShapeMap is a bare map, conventionally with a "result" key.
	ShapeMap ResponseShape = "map"
	// ShapeScalar is a raw value with no wrapping.
	ShapeScalar ResponseShape = "scalar"
)

// TextBlock is one text payload inside an envelope response.
type TextBlock struct {
	Text string `json:"text"`
}

// Response is a tagged union over the response shapes a capability may
// produce. Exactly one of Content, Fields, or Value is meaningful, selected
// by Shape.
type Response struct {
	Shape   ResponseShape          `json:"shape"`
	Content []TextBlock            `json:"content,omitempty"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
	Value   interface{}            `json:"value,omitempty"`
}

// EnvelopeResponse builds an envelope Response from text payloads.
func EnvelopeResponse(texts ...string) Response {
	blocks := make([]TextBlock, len(texts))
	for i, t := range texts {
		blocks[i] = TextBlock{Text: t}
	}
	return Response{Shape: ShapeEnvelope, Content: blocks}
}

// MapResponse builds a bare-map Response.
func MapResponse(fields map[string]interface{}) Response {
	return Response{Shape: ShapeMap, Fields: fields}
}

// ScalarResponse builds a raw-value Response.
func ScalarResponse(value interface{}) Response {
	return Response{Shape: ShapeScalar, Value: value}
}

// Handler executes a capability with parsed arguments.
type Handler func(ctx context.Context, args map[string]interface{}) (Response, error)

// Dispatcher is the narrow surface the agent loop and sandbox depend on.
type Dispatcher interface {
	// Call invokes a capability by name.
	Call(ctx context.Context, name string, args map[string]interface{}) (Response, error)

	// GetCapabilities returns descriptors for the named groups. An empty
	// group list returns every registered capability.
	GetCapabilities(groups []string) []Descriptor
}
