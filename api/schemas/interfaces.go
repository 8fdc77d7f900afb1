// File: api/schemas/interfaces.go
package schemas

import (
	"context"
)

// -- Credential Store --

// Credential is one row of the auth store. Username is unique across rows.
type Credential struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// CredentialStore is the storage side of the TransferPlus action. Every
// implementation must apply SwapCredentials as a single all-or-nothing
// transaction.
type CredentialStore interface {
	// SwapCredentials exchanges the (user_id, password hash) pairs bound to
	// the two usernames.
	SwapCredentials(ctx context.Context, oldUsername, newUsername string) error
	// LookupCredential returns the row for username.
	LookupCredential(ctx context.Context, username string) (*Credential, error)
}

// -- LLM Interfaces --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions controls the text generation of the producer.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest is a complete request to the producer.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient is the structured-response producer. Its output is opaque raw
// text that ParseResponse decodes.
type LLMClient interface {
	// Generate produces a completion for the request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}
