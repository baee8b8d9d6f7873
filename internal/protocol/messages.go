package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	// Account is the connected wallet, when there is one.
	Account  string `json:"account,omitempty"`
	MaxQueue int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	ChainID         uint64   `json:"chain_id"`
	WorldAddress    string   `json:"world_address,omitempty"`
	Contracts       []string `json:"contracts"`
	MinPollMS       int      `json:"min_poll_ms"`
	DefaultPollMS   int      `json:"default_poll_ms"`
}

// SUBSCRIBE (client -> server): poll a view function. Args are form
// strings, one per input.
type SubscribeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SubID           string   `json:"sub_id"`
	Contract        string   `json:"contract"`
	Function        string   `json:"function"`
	Args            []string `json:"args,omitempty"`
	PollMS          int      `json:"poll_ms,omitempty"`
}

// UNSUBSCRIBE (client -> server)
type UnsubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SubID           string `json:"sub_id"`
}

// UPDATE (server -> client): the latest result of a subscription.
type UpdateMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SubID           string          `json:"sub_id"`
	Key             string          `json:"key"`
	Kind            string          `json:"kind"`
	Text            string          `json:"text"`
	Value           json.RawMessage `json:"value"`
	At              string          `json:"at"`
}

// ERROR (server -> client). SubID is empty for connection-level errors.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SubID           string `json:"sub_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(subID, code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, SubID: subID, Code: code, Message: message}
}
