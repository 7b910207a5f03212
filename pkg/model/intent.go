package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
)

// IntentAction is the closed set of actions a token's intent may name.
// The byte values are part of the wire contract (spec §6) and must not
// be renumbered.
type IntentAction byte

const (
	IntentAll           IntentAction = 0
	IntentCreateSecrets IntentAction = 1
	IntentImpersonate   IntentAction = 2
	IntentFetchInfo     IntentAction = 3
	IntentDpExchange    IntentAction = 4
)

func (a IntentAction) String() string {
	switch a {
	case IntentAll:
		return "All"
	case IntentCreateSecrets:
		return "CreateSecrets"
	case IntentImpersonate:
		return "Impersonate"
	case IntentFetchInfo:
		return "FetchInfo"
	case IntentDpExchange:
		return "DpExchange"
	default:
		return "Unknown"
	}
}

// Intent is the second authorization dimension on a JWT: it names the
// action the token grants and the proxy endpoint it is scoped to.
type Intent struct {
	Target ID
	Action IntentAction
}

// Serialize renders the intent as "<target-ulid>_<action-byte>", the
// wire form stored in the `it` claim.
func (i Intent) Serialize() string {
	return fmt.Sprintf("%s_%d", i.Target.String(), byte(i.Action))
}

// ParseIntent parses the wire form produced by Serialize. An unknown
// action byte is a hard protocol error (AuthMalformed) rather than a
// panic — see the resolved Open Question in spec §9.
func ParseIntent(s string) (Intent, error) {
	idx := strings.LastIndexByte(s, '_')
	if idx < 0 {
		return Intent{}, dataproxyerrs.AuthMalformed.New("malformed intent string %q", s)
	}
	target, err := ParseID(s[:idx])
	if err != nil {
		return Intent{}, dataproxyerrs.AuthMalformed.Wrap(err)
	}
	n, err := strconv.Atoi(s[idx+1:])
	if err != nil || n < 0 || n > 255 {
		return Intent{}, dataproxyerrs.AuthMalformed.New("malformed intent action in %q", s)
	}
	action := IntentAction(n)
	switch action {
	case IntentAll, IntentCreateSecrets, IntentImpersonate, IntentFetchInfo, IntentDpExchange:
		return Intent{Target: target, Action: action}, nil
	default:
		return Intent{}, dataproxyerrs.AuthMalformed.New("unknown intent action byte %d", n)
	}
}

// ArunaTokenClaims is the set of claims this proxy understands on an
// inbound or outbound JWT.
type ArunaTokenClaims struct {
	Issuer    string
	Subject   string
	Audience  string // "aruna" or "proxy"
	ExpiresAt int64  // unix seconds
	TokenID   string // tid, optional
	HasIntent bool
	Intent    Intent
}
