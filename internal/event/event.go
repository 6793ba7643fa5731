// Package event defines the typed vocabulary pushed by the agent service
// over the generation stream, and the parsing of raw frames into it.
package event

import (
	"encoding/json"
	"fmt"
)

// Event is one discrete, typed unit received from the agent stream.
// Each variant corresponds to one wire-level event category.
type Event interface {
	// Type returns the wire name of the event category.
	Type() string
}

// Status marks a coarse progress change during generation ("thinking" or
// "generating").
type Status struct {
	State string
}

// Explanation carries a narrative fragment describing the game concept.
type Explanation struct {
	Text string
}

// Features carries a narrative fragment listing planned game features.
type Features struct {
	Text string
}

// Suggestions carries raw follow-up suggestion text to be parsed
// line-by-line into individual suggestions.
type Suggestions struct {
	Text string
}

// Command carries an agent command note, optionally wrapped as
// "<tag>content<".
type Command struct {
	Text string
}

// CodeChunk carries an incremental fragment of generated source.
type CodeChunk struct {
	Text string
}

// Code carries the final, authoritative game bundle.
type Code struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
	JS   string `json:"js"`
}

// Error reports an agent-side generation failure.
type Error struct {
	Message string
}

// PublishStatus marks progress within the publish pipeline
// ("validating", "preparing" or "deploying").
type PublishStatus struct {
	State string
}

// PublishSuccess reports a completed deployment.
type PublishSuccess struct {
	LiveURL  string `json:"live_url"`
	SiteName string `json:"site_name"`
	Message  string `json:"message"`
}

// PublishError reports a failed deployment.
type PublishError struct {
	Message string
}

// PublishMessage carries a narrative fragment from the publisher.
type PublishMessage struct {
	Text string
}

// Unknown preserves an event of an unrecognized category. The session
// fold ignores it; it exists so new server-side categories never break
// the client.
type Unknown struct {
	Category string
}

func (Status) Type() string         { return "status" }
func (Explanation) Type() string    { return "explanation" }
func (Features) Type() string       { return "features" }
func (Suggestions) Type() string    { return "suggestions" }
func (Command) Type() string        { return "command" }
func (CodeChunk) Type() string      { return "code_chunk" }
func (Code) Type() string           { return "code" }
func (Error) Type() string          { return "error" }
func (PublishStatus) Type() string  { return "publish_status" }
func (PublishSuccess) Type() string { return "publish_success" }
func (PublishError) Type() string   { return "publish_error" }
func (PublishMessage) Type() string { return "publish_message" }
func (u Unknown) Type() string      { return u.Category }

// envelope is the wire shape of every streamed event. Payload is either
// a JSON string or an object depending on the category.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ParseFrame decodes one framed event body into its typed variant.
// Malformed JSON is an error (the transport drops such frames with a
// diagnostic); an unrecognized category parses into Unknown.
func ParseFrame(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event frame: %w", err)
	}

	switch env.Type {
	case "status":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return Status{State: s}, nil
	case "explanation":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return Explanation{Text: s}, nil
	case "features":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return Features{Text: s}, nil
	case "suggestions":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return Suggestions{Text: s}, nil
	case "command":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return Command{Text: s}, nil
	case "code_chunk":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return CodeChunk{Text: s}, nil
	case "code":
		var c Code
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return nil, fmt.Errorf("failed to parse code payload: %w", err)
		}
		return c, nil
	case "error":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return Error{Message: s}, nil
	case "publish_status":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return PublishStatus{State: s}, nil
	case "publish_success":
		var p PublishSuccess
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to parse publish_success payload: %w", err)
		}
		return p, nil
	case "publish_error":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return PublishError{Message: s}, nil
	case "publish_message":
		s, err := textPayload(env)
		if err != nil {
			return nil, err
		}
		return PublishMessage{Text: s}, nil
	default:
		return Unknown{Category: env.Type}, nil
	}
}

func textPayload(env envelope) (string, error) {
	var s string
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		return "", fmt.Errorf("failed to parse %s payload: %w", env.Type, err)
	}
	return s, nil
}
