package amplipi

import "strings"

// LocalInput is the source input value for the physical RCA input.
const LocalInput = "local"

// StreamKind classifies a source input.
type StreamKind int

const (
	// StreamNone means the source has no input selected.
	StreamNone StreamKind = iota
	// StreamLocal is the local analog input; it has no stream record.
	StreamLocal
	// StreamNamed refers to a stream record by id.
	StreamNamed
)

// StreamRef is a parsed source input.
type StreamRef struct {
	Kind StreamKind
	ID   string
}

// ParseStreamRef splits a source input such as "stream=1000" into its
// stream id. Any "key=ID" form is accepted; the id is everything after the
// first '='.
func ParseStreamRef(input string) StreamRef {
	input = strings.TrimSpace(NormalizeNull(input))
	if input == "" {
		return StreamRef{Kind: StreamNone}
	}
	if input == LocalInput {
		return StreamRef{Kind: StreamLocal}
	}
	_, id, found := strings.Cut(input, "=")
	if !found {
		id = input
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return StreamRef{Kind: StreamNone}
	}
	return StreamRef{Kind: StreamNamed, ID: id}
}

// StreamInput builds the input value that selects a stream id.
func StreamInput(id string) string {
	if id == LocalInput {
		return LocalInput
	}
	return "stream=" + id
}
