package store

// Role is the closed enum of message authors.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ProposalStatus is the closed enum of a PreferenceProposal's lifecycle state.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalApproved  ProposalStatus = "approved"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalDismissed ProposalStatus = "dismissed"
)

// Event type constants, kept as a closed set.
const (
	EventUserPrompt         = "user_prompt"
	EventAssistantResponse  = "assistant_response"
	EventLLMRequest         = "llm_request"
	EventLLMResponse        = "llm_response"
	EventRegenerateRequest  = "regenerate_request"
	EventLLMRegenRequest    = "llm_regenerate_request"
	EventPreferencesReset   = "preferences_reset"
	EventPreferenceApproved = "preference_approved"
	EventPreferenceRejected = "preference_rejected"
	EventToolRun            = "tool_run"
	EventModelSwitch        = "model_switch"
	EventServiceStart       = "service_start"
	EventServiceStop        = "service_stop"
)

type Conversation struct {
	ID           int64   `json:"id"`
	Title        *string `json:"title"`
	CreatedAt    string  `json:"created_at"`
	MessageCount int64   `json:"message_count"`
}

type Message struct {
	ID                int64  `json:"id"`
	Content           string `json:"content"`
	Role              Role   `json:"role"`
	Timestamp         string `json:"timestamp"`
	CorrectsMessageID *int64 `json:"corrects_message_id"`
}

type Event struct {
	ID                 int64  `json:"id"`
	Type               string `json:"type"`
	PayloadJSON        string `json:"payload_json"`
	ConversationID     *int64 `json:"conversation_id"`
	CausalityMessageID *int64 `json:"causality_message_id"`
	CreatedAt          string `json:"created_at"`
}

type Preference struct {
	ID               int64  `json:"id"`
	Key              string `json:"key"`
	Value            string `json:"value"`
	Scope            string `json:"scope"`
	CreatedAt        string `json:"created_at"`
	ApprovedEventID  *int64 `json:"approved_event_id"`
	SourceProposalID *int64 `json:"source_proposal_id"`
}

type PreferenceReset struct {
	ID           int64  `json:"id"`
	Scope        string `json:"scope"`
	CreatedAt    string `json:"created_at"`
	ResetEventID *int64 `json:"reset_event_id"`
}

type PreferenceProposal struct {
	ID                 int64          `json:"id"`
	ConversationID     int64          `json:"conversation_id"`
	Key                string         `json:"key"`
	Value              string         `json:"value"`
	ProposalText       string         `json:"proposal_text"`
	Rationale          *string        `json:"rationale"`
	Status             ProposalStatus `json:"status"`
	CreatedAt          string         `json:"created_at"`
	DecidedAt          *string        `json:"decided_at"`
	CausalityMessageID *int64         `json:"causality_message_id"`
	AssistantMessageID *int64         `json:"assistant_message_id"`
}
