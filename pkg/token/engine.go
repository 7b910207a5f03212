// Package token implements the Token Engine (C2): it verifies inbound
// JWTs against cached public keys and mints outbound tokens carrying
// intent claims for peer proxies.
package token

import (
	"crypto/ed25519"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/dataproxyerrs"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
)

const (
	audienceAruna = "aruna"
	audienceProxy = "proxy"

	impersonationTTL = 15 * time.Minute
	notificationTTL  = 10 * 365 * 24 * time.Hour
	exchangeTTL      = 15 * time.Minute
)

// Verified is what callers get back from a successful inbound
// verification: the subject and, if present, the token id.
type Verified struct {
	Subject string
	TokenID string
}

// claims is the jwt.Claims implementation used for both parsing and
// minting; its sub/aud/exp/tid/it fields mirror model.ArunaTokenClaims.
type claims struct {
	jwt.RegisteredClaims
	Tid string `json:"tid,omitempty"`
	It  string `json:"it,omitempty"`
}

// Engine verifies inbound tokens against cache and mints outbound
// tokens signed with this proxy's own Ed25519 key.
type Engine struct {
	cache          cache.Cache
	selfID         model.ID
	encodingKey    ed25519.PrivateKey
	encodingSerial string
}

// New builds a token Engine. encodingKey is this proxy's private
// Ed25519 signing key; encodingSerial is the kid advertised on tokens
// this proxy mints (and the cache key other proxies use to look up
// its public half).
func New(c cache.Cache, selfID model.ID, encodingKey ed25519.PrivateKey, encodingSerial string) *Engine {
	return &Engine{
		cache:          c,
		selfID:         selfID,
		encodingKey:    encodingKey,
		encodingSerial: encodingSerial,
	}
}

// Verify checks an inbound bearer token's signature, audience and
// expiry, then applies the inbound intent-acceptance rules from
// spec §4.2 before returning the caller identity.
func (e *Engine) Verify(tokenString string) (*Verified, error) {
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims{})
	if err != nil {
		return nil, dataproxyerrs.AuthMalformed.Wrap(err)
	}
	kid, ok := unverified.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, dataproxyerrs.AuthRejected.New("token has no kid")
	}

	_, pubKeyBytes, ok := e.cache.GetPubKey(kid)
	if !ok {
		return nil, dataproxyerrs.AuthRejected.New("unknown key serial %q", kid)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return nil, dataproxyerrs.AuthRejected.New("cached key for serial %q is not a valid Ed25519 key", kid)
	}
	pubKey := ed25519.PublicKey(pubKeyBytes)

	parsed := &claims{}
	_, err = jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA"}),
	).ParseWithClaims(tokenString, parsed, func(t *jwt.Token) (interface{}, error) {
		return pubKey, nil
	})
	if err != nil {
		return nil, dataproxyerrs.AuthRejected.Wrap(err)
	}

	if parsed.Audience == nil || len(parsed.Audience) != 1 {
		return nil, dataproxyerrs.AuthRejected.New("token has no single audience")
	}
	aud := parsed.Audience[0]
	if aud != audienceAruna && aud != audienceProxy {
		return nil, dataproxyerrs.AuthRejected.New("unexpected audience %q", aud)
	}

	if parsed.It == "" {
		// Ordinary user token: no intent to check.
		return &Verified{Subject: parsed.Subject, TokenID: parsed.Tid}, nil
	}

	intent, err := model.ParseIntent(parsed.It)
	if err != nil {
		return nil, err
	}

	switch intent.Action {
	case model.IntentAll:
		// Bearer-on-behalf: accepted regardless of target.
	case model.IntentCreateSecrets, model.IntentDpExchange:
		if intent.Target != e.selfID {
			return nil, dataproxyerrs.AuthRejected.New("Token is not valid for this Dataproxy")
		}
	case model.IntentImpersonate, model.IntentFetchInfo:
		return nil, dataproxyerrs.AuthRejected.New("intent action %s is outbound-only", intent.Action)
	default:
		return nil, dataproxyerrs.AuthMalformed.New("unknown intent action")
	}

	return &Verified{Subject: parsed.Subject, TokenID: parsed.Tid}, nil
}

func (e *Engine) sign(now time.Time, exp time.Time, audience, subject, tid string, intent *model.Intent) (string, error) {
	c := &claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Tid: tid,
	}
	if intent != nil {
		c.It = intent.Serialize()
	}

	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	t.Header["kid"] = e.encodingSerial

	return t.SignedString(e.encodingKey)
}

// MintImpersonation builds a short-lived token granting Impersonate
// intent for self, aimed at the metadata server (aud=aruna).
func (e *Engine) MintImpersonation(now time.Time, subject, tid string) (string, error) {
	intent := model.Intent{Target: e.selfID, Action: model.IntentImpersonate}
	return e.sign(now, now.Add(impersonationTTL), audienceAruna, subject, tid, &intent)
}

// MintNotification builds a long-lived FetchInfo token, aimed at the
// metadata server (aud=aruna), used for the push-notification channel
// this proxy subscribes to for cache invalidation.
func (e *Engine) MintNotification(now time.Time, subject string) (string, error) {
	intent := model.Intent{Target: e.selfID, Action: model.IntentFetchInfo}
	return e.sign(now, now.Add(notificationTTL), audienceAruna, subject, "", &intent)
}

// MintDataproxyExchange builds a short-lived DpExchange token scoped to
// a specific peer endpoint (aud=proxy), used to authenticate this
// proxy's pull-replication requests against that peer.
func (e *Engine) MintDataproxyExchange(now time.Time, targetEndpoint model.ID, subject string) (string, error) {
	intent := model.Intent{Target: targetEndpoint, Action: model.IntentDpExchange}
	return e.sign(now, now.Add(exchangeTTL), audienceProxy, subject, "", &intent)
}
