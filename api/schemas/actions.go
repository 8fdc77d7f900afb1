// File: api/schemas/actions.go
package schemas

import (
	"bytes"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ActionKind is the tag of an Action. The values double as the wire tags the
// producer emits, so they are case sensitive.
type ActionKind string

const (
	ActionNull         ActionKind = "Null"
	ActionTransferPlus ActionKind = "TransferPlus"
	ActionAbort        ActionKind = "Abort"
)

// Valid reports whether k is one of the closed set of action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionNull, ActionTransferPlus, ActionAbort:
		return true
	default:
		return false
	}
}

func (k ActionKind) String() string { return string(k) }

// TransferPlusParams carries the two usernames whose credentials are swapped.
type TransferPlusParams struct {
	OldUsername string `json:"old_username"`
	NewUsername string `json:"new_username"`
}

// Action is the closed tagged union of things the agent can ask us to do.
// TransferPlus is set if and only if Kind is ActionTransferPlus.
type Action struct {
	Kind         ActionKind
	TransferPlus *TransferPlusParams
}

// NullAction returns the no-op action.
func NullAction() Action { return Action{Kind: ActionNull} }

// AbortAction returns the action that tells the caller to stay silent.
func AbortAction() Action { return Action{Kind: ActionAbort} }

// TransferPlusAction returns a credential swap request between two usernames.
func TransferPlusAction(oldUsername, newUsername string) Action {
	return Action{
		Kind: ActionTransferPlus,
		TransferPlus: &TransferPlusParams{
			OldUsername: oldUsername,
			NewUsername: newUsername,
		},
	}
}

// Validate checks that exactly one variant is active and carries only its own fields.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionNull, ActionAbort:
		if a.TransferPlus != nil {
			return fmt.Errorf("action %s must not carry TransferPlus parameters", a.Kind)
		}
		return nil
	case ActionTransferPlus:
		if a.TransferPlus == nil {
			return fmt.Errorf("action %s requires parameters", a.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", string(a.Kind))
	}
}

// MarshalJSON encodes unit variants as bare strings and TransferPlus as a
// single-key object, e.g. {"TransferPlus": {"old_username": "a", "new_username": "b"}}.
func (a Action) MarshalJSON() ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Kind == ActionTransferPlus {
		return json.Marshal(map[string]*TransferPlusParams{string(ActionTransferPlus): a.TransferPlus})
	}
	return json.Marshal(string(a.Kind))
}

// UnmarshalJSON is the strict inverse of MarshalJSON. Unknown tags, unit
// variants in object form and struct variants in string form are rejected.
func (a *Action) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty action")
	}

	switch data[0] {
	case '"':
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return fmt.Errorf("invalid action tag: %w", err)
		}
		switch ActionKind(tag) {
		case ActionNull, ActionAbort:
			*a = Action{Kind: ActionKind(tag)}
			return nil
		case ActionTransferPlus:
			return fmt.Errorf("action %s requires old_username and new_username", tag)
		default:
			return fmt.Errorf("unknown action %q", tag)
		}

	case '{':
		var variant map[string]jsoniter.RawMessage
		if err := json.Unmarshal(data, &variant); err != nil {
			return fmt.Errorf("invalid action object: %w", err)
		}
		if len(variant) != 1 {
			return fmt.Errorf("action object must have exactly one tag, got %d", len(variant))
		}
		for tag, body := range variant {
			switch ActionKind(tag) {
			case ActionTransferPlus:
				params, err := decodeTransferPlus(body)
				if err != nil {
					return err
				}
				*a = Action{Kind: ActionTransferPlus, TransferPlus: params}
				return nil
			case ActionNull, ActionAbort:
				return fmt.Errorf("action %s must be encoded as a string", tag)
			default:
				return fmt.Errorf("unknown action %q", tag)
			}
		}
	}

	return fmt.Errorf("action must be a string or an object, got %.20q", string(data))
}

func decodeTransferPlus(body []byte) (*TransferPlusParams, error) {
	var raw struct {
		OldUsername *string `json:"old_username"`
		NewUsername *string `json:"new_username"`
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, errors.New("TransferPlus parameters must be an object")
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid TransferPlus parameters: %w", err)
	}
	if raw.OldUsername == nil {
		return nil, errors.New("TransferPlus is missing old_username")
	}
	if raw.NewUsername == nil {
		return nil, errors.New("TransferPlus is missing new_username")
	}
	return &TransferPlusParams{OldUsername: *raw.OldUsername, NewUsername: *raw.NewUsername}, nil
}

// AiResponse is the envelope the producer returns: an action plus the reply text.
type AiResponse struct {
	Action Action `json:"action"`
	Text   string `json:"text"`
}

// UnmarshalJSON requires both fields to be present.
func (r *AiResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action jsoniter.RawMessage `json:"action"`
		Text   *string             `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Action) == 0 || string(bytes.TrimSpace(raw.Action)) == "null" {
		return errors.New("missing field action")
	}
	if raw.Text == nil {
		return errors.New("missing field text")
	}

	var action Action
	if err := action.UnmarshalJSON(raw.Action); err != nil {
		return err
	}
	*r = AiResponse{Action: action, Text: *raw.Text}
	return nil
}

// ReplyText is the text the caller should send. It is always empty for Abort,
// whatever the producer put in the text field.
func (r AiResponse) ReplyText() string {
	if r.Action.Kind == ActionAbort {
		return ""
	}
	return r.Text
}

// ShouldReply reports whether the caller should send anything at all.
func (r AiResponse) ShouldReply() bool {
	return r.Action.Kind != ActionAbort && r.Text != ""
}
