package domain

// CommandKind names a peer-requestable mutation. The set is closed: anything
// not in the policy table is rejected before it reaches the relay.
type CommandKind string

const (
	CmdAssignMe      CommandKind = "assignMe"
	CmdClearEntry    CommandKind = "clearEntry"
	CmdSetEntryNotes CommandKind = "setEntryNotes"
	CmdJoinRank      CommandKind = "joinRank"
	CmdSetNote       CommandKind = "setNote"
)

// Command is a peer's mutation request. Payload keys depend on the kind
// (slotId, notes, rank, ...). Commands are sent once and never retried by
// the engine; every reducer is idempotent from current state, so a client
// may safely re-issue after a visible timeout.
type Command struct {
	Kind    CommandKind    `json:"op"`
	Actor   EntityRef      `json:"actorRef"`
	From    Identity       `json:"fromId"`
	Payload map[string]any `json:"payload,omitempty"`
}

// PayloadString extracts a string payload field, empty when absent.
func (c Command) PayloadString(key string) string {
	s, _ := c.Payload[key].(string)
	return s
}

// PayloadInt extracts an integer payload field, tolerating JSON's float64.
func (c Command) PayloadInt(key string) (int, bool) {
	switch v := c.Payload[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// OwnershipRule declares who may issue a command kind.
type OwnershipRule string

const (
	// RuleOwnActor requires the command's actor to be controlled by the
	// requesting identity, and the identity to be active.
	RuleOwnActor OwnershipRule = "own-actor"
)

// CommandPolicy is the static row attached to each command kind: the document
// it mutates and the ownership rule checked before it is applied.
type CommandPolicy struct {
	Doc  DocName
	Rule OwnershipRule
}

var commandPolicies = map[CommandKind]CommandPolicy{
	CmdAssignMe:      {Doc: DocWatch, Rule: RuleOwnActor},
	CmdClearEntry:    {Doc: DocWatch, Rule: RuleOwnActor},
	CmdSetEntryNotes: {Doc: DocWatch, Rule: RuleOwnActor},
	CmdJoinRank:      {Doc: DocMarch, Rule: RuleOwnActor},
	CmdSetNote:       {Doc: DocMarch, Rule: RuleOwnActor},
}

// PolicyFor looks up the static policy for a command kind.
func PolicyFor(kind CommandKind) (CommandPolicy, bool) {
	p, ok := commandPolicies[kind]
	return p, ok
}

// DocOps returns the allowed ops per document, the bus-boundary allow-list.
func DocOps(name DocName) []CommandKind {
	var ops []CommandKind
	for kind, p := range commandPolicies {
		if p.Doc == name {
			ops = append(ops, kind)
		}
	}
	return ops
}
