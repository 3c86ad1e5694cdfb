package audit

import (
	"regexp"
	"time"

	id "onboard/pkg/domain"
)

// Action names a state-changing event. Values are stable strings and the set
// is only ever extended.
type Action string

const (
	ActionSessionStart          Action = "SESSION_START"
	ActionProfileUpdate         Action = "PROFILE_UPDATE"
	ActionVerificationStarted   Action = "VERIFICATION_STARTED"
	ActionVerificationCompleted Action = "VERIFICATION_COMPLETED"
	ActionSignatureInitiated    Action = "SIGNATURE_INITIATED"
	ActionSignatureCompleted    Action = "SIGNATURE_COMPLETED"
	ActionPaymentInitiated      Action = "PAYMENT_INITIATED"
	ActionPaymentCompleted      Action = "PAYMENT_COMPLETED"
	ActionAccountIssued         Action = "ACCOUNT_ISSUED"
	ActionExternalLookup        Action = "EXTERNAL_LOOKUP"
	ActionConsentCaptured       Action = "CONSENT_CAPTURED"
)

// AgentPrefix namespaces assisted-channel attribution events.
const AgentPrefix = "AGENT_"

// ActionAgentSessionTagged records that a session was attributed to an agent.
const ActionAgentSessionTagged Action = AgentPrefix + "SESSION_TAGGED"

var agentKindPattern = regexp.MustCompile(`^[A-Z][A-Z_]{0,47}$`)

// AgentAction builds an AGENT_* action from an upper-case kind such as "HANDOFF".
func AgentAction(kind string) (Action, bool) {
	if !agentKindPattern.MatchString(kind) {
		return "", false
	}
	return Action(AgentPrefix + kind), true
}

// Valid reports whether a is part of the vocabulary.
func (a Action) Valid() bool {
	switch a {
	case ActionSessionStart, ActionProfileUpdate, ActionVerificationStarted,
		ActionVerificationCompleted, ActionSignatureInitiated, ActionSignatureCompleted,
		ActionPaymentInitiated, ActionPaymentCompleted, ActionAccountIssued,
		ActionExternalLookup, ActionConsentCaptured:
		return true
	}
	if len(a) > len(AgentPrefix) && string(a[:len(AgentPrefix)]) == AgentPrefix {
		return agentKindPattern.MatchString(string(a[len(AgentPrefix):]))
	}
	return false
}

// Entry is one immutable link of a session's chain.
//
// PayloadHash is the content hash of the action payload. ChainHash links it to
// the previous entry: ChainHash = SHA256(PreviousHash || PayloadHash), and
// PreviousHash is the prior entry's ChainHash (empty for the first entry).
type Entry struct {
	SessionID    id.SessionID
	Sequence     int64
	Action       Action
	PayloadHash  string
	ChainHash    string
	PreviousHash string
	Timestamp    time.Time
	IPAddress    string
	UserAgent    string
	Metadata     map[string]any
}

// BrokenAt identifies the first entry that failed verification.
type BrokenAt struct {
	Sequence int64  `json:"sequence"`
	Action   Action `json:"action"`
	Reason   string `json:"reason"`
}

// Verification is the result of walking a chain.
type Verification struct {
	SessionID    id.SessionID `json:"session_id"`
	Valid        bool         `json:"valid"`
	TotalEntries int          `json:"total_entries"`
	BrokenAt     *BrokenAt    `json:"broken_at,omitempty"`
	Message      string       `json:"message"`
	VerifiedAt   time.Time    `json:"verified_at"`
}

// Freeze records a chain closed for manual regulatory review.
type Freeze struct {
	SessionID id.SessionID
	Sequence  int64
	Reason    string
	FrozenAt  time.Time
}
