package notation

import "fmt"

// ParseError reports a malformed attack or damage expression.
type ParseError struct {
	Input  string // the whole expression as typed
	Token  string // offending term or token; empty when the problem is structural
	Offset int    // byte offset of Token within Input
	Reason string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("could not parse %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("could not parse token %q: %s", e.Token, e.Reason)
}
