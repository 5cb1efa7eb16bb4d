package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	_ "crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/drblury/protowamp/internal/runtime/jsoncodec"
	"github.com/drblury/protowamp/internal/runtime/session"
	"github.com/drblury/protowamp/internal/runtime/wamp"
)

const (
	nonceSize       = 16
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// SecretLookup returns the shared secret of authID.
type SecretLookup func(authID string) (secret string, ok bool)

// StaticSecrets serves secrets from a fixed map.
func StaticSecrets(secrets map[string]string) SecretLookup {
	copied := make(map[string]string, len(secrets))
	for id, secret := range secrets {
		copied[id] = secret
	}
	return func(authID string) (string, bool) {
		secret, ok := copied[authID]
		return secret, ok
	}
}

// CRAConfig configures a ChallengeResponse negotiator.
type CRAConfig struct {
	// Secret signs challenges on the client side.
	Secret string
	// Secrets resolves the secret of a claimed authid on the router side.
	Secrets  SecretLookup
	Role     string
	Provider string
	// Hash defaults to SHA-256.
	Hash crypto.Hash
}

// ChallengeResponse implements WAMP-CRA: the router sends a JSON challenge
// and the client answers with its base64 HMAC.
type ChallengeResponse struct {
	pendingHolder
	cfg CRAConfig
}

func NewChallengeResponse(cfg CRAConfig) *ChallengeResponse {
	if cfg.Hash == 0 {
		cfg.Hash = crypto.SHA256
	}
	cfg.Role = orDefault(cfg.Role, "user")
	cfg.Provider = orDefault(cfg.Provider, DefaultProvider)
	return &ChallengeResponse{cfg: cfg}
}

type craChallenge struct {
	AuthID       string `json:"authid"`
	AuthRole     string `json:"authrole"`
	AuthMethod   string `json:"authmethod"`
	AuthProvider string `json:"authprovider"`
	Nonce        string `json:"nonce"`
	Timestamp    string `json:"timestamp"`
	Session      int64  `json:"session"`
}

func (c *ChallengeResponse) Name() string { return MethodCRA }

func (c *ChallengeResponse) NeedChallenge(_ session.Session, hello *wamp.Hello) bool {
	return advertises(hello, MethodCRA)
}

func (c *ChallengeResponse) Challenge(sess session.Session, hello *wamp.Hello) (*wamp.Challenge, error) {
	if !sess.IsRouter() {
		return nil, nil
	}
	authID := hello.AuthID()
	if _, ok := c.secret(authID); !ok {
		return nil, fmt.Errorf("%w: unknown authid %q", ErrAuthenticationFailed, authID)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, &SignatureError{Method: MethodCRA, Err: err}
	}
	payload, err := jsoncodec.Marshal(craChallenge{
		AuthID:       authID,
		AuthRole:     c.cfg.Role,
		AuthMethod:   MethodCRA,
		AuthProvider: c.cfg.Provider,
		Nonce:        hex.EncodeToString(nonce),
		Timestamp:    time.Now().UTC().Format(timestampLayout),
		Session:      sess.ID(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode challenge: %w", err)
	}
	c.pending().Put(sess.ID(), Pending{
		Method:       MethodCRA,
		AuthID:       authID,
		AuthRole:     c.cfg.Role,
		AuthProvider: c.cfg.Provider,
		Challenge:    string(payload),
	})
	return &wamp.Challenge{
		AuthMethod: MethodCRA,
		Extra:      wamp.Dict{wamp.KeyChallenge: string(payload)},
	}, nil
}

func (c *ChallengeResponse) Authenticate(sess session.Session, challenge *wamp.Challenge) (*wamp.Authenticate, error) {
	if sess.IsRouter() {
		return nil, nil
	}
	text := wamp.String(challenge.Extra, wamp.KeyChallenge)
	if text == "" {
		return nil, fmt.Errorf("%w: challenge without payload", wamp.ErrMalformedMessage)
	}
	signature, err := Sign(c.cfg.Hash, c.cfg.Secret, text)
	if err != nil {
		return nil, err
	}
	return &wamp.Authenticate{Signature: signature, Extra: wamp.Dict{}}, nil
}

func (c *ChallengeResponse) Authenticated(sess session.Session, msg *wamp.Authenticate) (*session.Identity, error) {
	p, err := c.pending().Take(sess.ID())
	if err != nil {
		return nil, err
	}
	if p.Method != MethodCRA {
		return nil, ErrNoPendingChallenge
	}
	if msg == nil {
		return nil, ErrAuthenticationFailed
	}
	secret, ok := c.secret(p.AuthID)
	if !ok {
		return nil, ErrAuthenticationFailed
	}
	expected, err := Sign(c.cfg.Hash, secret, p.Challenge)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(expected), []byte(msg.Signature)) {
		return nil, ErrAuthenticationFailed
	}
	return &session.Identity{
		AuthMethod:   MethodCRA,
		AuthID:       p.AuthID,
		AuthRole:     p.AuthRole,
		AuthProvider: p.AuthProvider,
	}, nil
}

func (c *ChallengeResponse) secret(authID string) (string, bool) {
	if c.cfg.Secrets == nil {
		return c.cfg.Secret, c.cfg.Secret != ""
	}
	return c.cfg.Secrets(authID)
}

// Sign returns the base64 HMAC of challenge keyed with secret.
func Sign(h crypto.Hash, secret, challenge string) (string, error) {
	if !h.Available() {
		return "", &SignatureError{Method: MethodCRA, Err: fmt.Errorf("hash %v is not linked into the binary", h)}
	}
	mac := hmac.New(h.New, []byte(secret))
	mac.Write([]byte(challenge))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
