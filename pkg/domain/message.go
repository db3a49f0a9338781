package domain

// MessageType tags a bus envelope.
type MessageType string

const (
	// MsgOpen asks every peer to surface the app; answered with MsgOpenAck.
	MsgOpen MessageType = "open"
	// MsgOpenAck acknowledges an open broadcast.
	MsgOpenAck MessageType = "open:ack"
	// MsgRefresh tells clients a document changed; re-read and re-render.
	MsgRefresh MessageType = "refresh"
	// MsgMutate carries a peer command to the host.
	MsgMutate MessageType = "session:mutate"
)

// Envelope is the single wire shape carried by every bus adapter.
// Delivery is at-most-once: a lost envelope is simply never applied.
type Envelope struct {
	Type      MessageType `json:"type"`
	From      Identity    `json:"from"`
	App       string      `json:"app,omitempty"`
	RequestID string      `json:"requestId,omitempty"`
	Request   *Command    `json:"request,omitempty"`
}
