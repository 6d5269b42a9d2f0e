package domain

// Channel is the kind of inbound carrier event.
type Channel string

const (
	ChannelVoice   Channel = "voice"
	ChannelMessage Channel = "message"
)

// InboundEvent is a call or message reaching a proxy number.
type InboundEvent struct {
	Channel Channel
	Proxy   string
	Origin  string
	Body    string
	EventID string
}

// DecisionKind enumerates routing outcomes.
type DecisionKind string

const (
	DecisionConnect DecisionKind = "connect"
	DecisionReject  DecisionKind = "reject"
	DecisionRelay   DecisionKind = "relay"
)

// Reject reasons.
const (
	ReasonUnknownProxy    = "unknown_proxy"
	ReasonCountry         = "country"
	ReasonNoRecentContact = "no_recent_contact"
	ReasonConfirmation    = "confirmation"
	ReasonUnavailable     = "unavailable"
)

// Decision is the carrier-agnostic outcome of routing an inbound event.
// Connect bridges a call, Relay forwards a message body and Reject refuses
// the event with a user-facing Message.
type Decision struct {
	Kind    DecisionKind `json:"kind"`
	From    string       `json:"from,omitempty"`
	To      string       `json:"to,omitempty"`
	Body    string       `json:"body,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
}

func Connect(from, to string) Decision {
	return Decision{Kind: DecisionConnect, From: from, To: to}
}

func Relay(from, to, body string) Decision {
	return Decision{Kind: DecisionRelay, From: from, To: to, Body: body}
}

func Reject(reason, message string) Decision {
	return Decision{Kind: DecisionReject, Reason: reason, Message: message}
}
