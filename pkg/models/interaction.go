package models

// InteractionKind is the UI widget kind a pending interaction requests.
type InteractionKind string

const (
	InteractionSelect    InteractionKind = "select"
	InteractionConfirm   InteractionKind = "confirm"
	InteractionInput     InteractionKind = "input"
	InteractionComposite InteractionKind = "composite"
)

// InteractionPurpose classifies why the interaction was raised.
type InteractionPurpose string

const (
	PurposeChooseStrategy     InteractionPurpose = "choose_strategy"
	PurposeRequestInfo        InteractionPurpose = "request_info"
	PurposeConfirmRiskyAction InteractionPurpose = "confirm_risky_action"
	PurposeAssignSubtask      InteractionPurpose = "assign_subtask"
	PurposeGeneric            InteractionPurpose = "generic"
)

// OptionStyle hints how a client should render an option.
type OptionStyle string

const (
	OptionStyleDefault     OptionStyle = "default"
	OptionStyleDestructive OptionStyle = "destructive"
	OptionStylePrimary     OptionStyle = "primary"
)

// Option is one choice offered by a Select/Confirm interaction.
type Option struct {
	ID        string      `json:"id"`
	Label     string      `json:"label"`
	Style     OptionStyle `json:"style,omitempty"`
	IsDefault bool        `json:"is_default,omitempty"`
}

// Display carries the human-facing content of an interaction.
type Display struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Content     string            `json:"content,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Validation constrains an Input interaction's free-text response.
type Validation struct {
	Regex    string `json:"regex,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Interaction is a pending request for user input (§3). At most one is
// pending per task (INV-3). The confirmation-binding convention (SA-001)
// stores the tool call id a Confirm interaction is gating in
// Display.Metadata["toolCallId"].
type Interaction struct {
	InteractionID string             `json:"interaction_id"`
	Kind          InteractionKind    `json:"kind"`
	Purpose       InteractionPurpose `json:"purpose"`
	Display       Display            `json:"display"`
	Options       []Option           `json:"options,omitempty"`
	Validation    *Validation        `json:"validation,omitempty"`
}

// BoundToolCallID returns the tool call id this interaction confirms, if
// any, via the SA-001 Display.Metadata convention.
func (i Interaction) BoundToolCallID() (string, bool) {
	if i.Display.Metadata == nil {
		return "", false
	}
	id, ok := i.Display.Metadata["toolCallId"]
	return id, ok
}

// InteractionResponse is the client's answer to a pending Interaction. It
// must reference the currently pending InteractionID (SA-002) or it is
// rejected as stale.
type InteractionResponse struct {
	InteractionID    string `json:"interaction_id"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	InputValue       string `json:"input_value,omitempty"`
	Comment          string `json:"comment,omitempty"`
}

// IsApproval reports whether this response approves a Confirm interaction.
func (r InteractionResponse) IsApproval() bool {
	return r.SelectedOptionID == "approve"
}

// IsRejection reports whether this response rejects a Confirm interaction.
func (r InteractionResponse) IsRejection() bool {
	return r.SelectedOptionID == "reject"
}
