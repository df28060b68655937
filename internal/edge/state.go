package edge

// State is a step of the per-request experiment protocol.
type State int

const (
	RequestReceived State = iota
	TokenResolved
	RuleResolved
	Decided
	URIRewritten
	ResponseReceived
	CookiePersisted
	ResponseReturned
)

var stateNames = [...]string{
	RequestReceived:  "request_received",
	TokenResolved:    "token_resolved",
	RuleResolved:     "rule_resolved",
	Decided:          "decided",
	URIRewritten:     "uri_rewritten",
	ResponseReceived: "response_received",
	CookiePersisted:  "cookie_persisted",
	ResponseReturned: "response_returned",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
