// File: api/schemas/parse.go
package schemas

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/plusdesk/internal/llmutil"
)

// ErrParse matches every *ParseError via errors.Is.
var ErrParse = errors.New("malformed producer response")

// ParseError reports producer output that does not match the action schema.
type ParseError struct {
	// Raw is the offending payload, truncated for logging.
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrParse.Error(), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ParseResponse decodes the raw producer output into an AiResponse. It never
// falls back to a default action: anything outside the schema is a *ParseError.
func ParseResponse(raw string) (*AiResponse, error) {
	resp, err := llmutil.DecodeObject[AiResponse](raw)
	if err != nil {
		return nil, &ParseError{Raw: llmutil.Truncate(raw, 200), Err: err}
	}
	if err := resp.Action.Validate(); err != nil {
		return nil, &ParseError{Raw: llmutil.Truncate(raw, 200), Err: err}
	}
	return resp, nil
}
