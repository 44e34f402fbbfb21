package pasetotoken

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/bookspot/bookspot_backend/config"
)

type Config struct {
	Mode Mode

	Issuer   string
	Audience string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	Implicit []byte

	// Clock drives issued-at, expiry and verification time. Defaults to the
	// real clock.
	Clock clockwork.Clock
}

type Manager struct {
	cfg  Config
	keys Keys
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, ConfigError{Msg: "mode does not match the loaded keys"}
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, ConfigError{Msg: "issuer and audience are required"}
	}
	switch {
	case cfg.Mode == ModeLocal && keys.Symmetric != nil:
	case cfg.Mode == ModePublic && keys.Public != nil:
	default:
		return nil, ConfigError{Msg: "missing key material for mode " + string(cfg.Mode)}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Manager{cfg: cfg, keys: keys}, nil
}

// NewFromConfig loads keys and TTLs from the authentication.paseto section.
func NewFromConfig(cfg *config.Config, clock clockwork.Clock) (*Manager, error) {
	p := cfg.Authentication.Paseto
	keys, err := LoadKeys(KeyStrings{
		Mode:         Mode(p.Mode),
		SymmetricHex: p.LocalKeyHex,
		SecretHex:    p.SecretKeyHex,
		PublicHex:    p.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}
	return New(Config{
		Mode:       Mode(p.Mode),
		Issuer:     p.Issuer,
		Audience:   p.Audience,
		AccessTTL:  time.Duration(p.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(p.RefreshTTLDays) * 24 * time.Hour,
		Clock:      clock,
	}, keys)
}

func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

func (m *Manager) IssueAccess(userID uuid.UUID, role string, sessionID uuid.UUID) (string, error) {
	return m.issue(TokenTypeAccess, userID, role, sessionID, m.cfg.AccessTTL)
}

func (m *Manager) IssueRefresh(userID uuid.UUID, role string, sessionID uuid.UUID) (string, error) {
	return m.issue(TokenTypeRefresh, userID, role, sessionID, m.cfg.RefreshTTL)
}

// Verify checks the seal, issuer, audience and validity window against the
// manager's clock, then decodes the Bookspot claims.
func (m *Manager) Verify(token string) (*Claims, error) {
	p := paseto.NewParserWithoutExpiryCheck()
	p.AddRule(paseto.IssuedBy(m.cfg.Issuer))
	p.AddRule(paseto.ForAudience(m.cfg.Audience))
	p.AddRule(paseto.ValidAt(m.cfg.Clock.Now()))

	var (
		tok *paseto.Token
		err error
	)
	if m.cfg.Mode == ModeLocal {
		tok, err = p.ParseV4Local(*m.keys.Symmetric, token, m.cfg.Implicit)
	} else {
		tok, err = p.ParseV4Public(*m.keys.Public, token, m.cfg.Implicit)
	}
	if err != nil {
		return nil, TokenError{Err: err}
	}

	claims, err := decodeClaims(tok)
	if err != nil {
		return nil, TokenError{Err: err}
	}
	return claims, nil
}

func (m *Manager) issue(tt TokenType, userID uuid.UUID, role string, sessionID uuid.UUID, ttl time.Duration) (string, error) {
	if sessionID == uuid.Nil {
		return "", ErrNoSession
	}
	now := m.cfg.Clock.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(uuid.NewString())
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(ttl))
	tok.SetSubject(userID.String())
	tok.SetString("typ", string(tt))
	tok.SetString("rol", role)
	tok.SetString("sid", sessionID.String())

	if m.cfg.Mode == ModeLocal {
		return tok.V4Encrypt(*m.keys.Symmetric, m.cfg.Implicit), nil
	}
	if m.keys.Secret == nil {
		return "", ConfigError{Msg: "verify-only keys cannot issue tokens"}
	}
	return tok.V4Sign(*m.keys.Secret, m.cfg.Implicit), nil
}

func decodeClaims(tok *paseto.Token) (*Claims, error) {
	var (
		out Claims
		err error
	)
	if out.TokenID, err = tok.GetJti(); err != nil {
		return nil, err
	}
	if out.IssuedAt, err = tok.GetIssuedAt(); err != nil {
		return nil, err
	}
	if out.ExpiresAt, err = tok.GetExpiration(); err != nil {
		return nil, err
	}

	sub, err := tok.GetSubject()
	if err != nil {
		return nil, err
	}
	if out.UserID, err = uuid.Parse(sub); err != nil {
		return nil, err
	}

	typ, err := tok.GetString("typ")
	if err != nil {
		return nil, err
	}
	out.Type = TokenType(typ)

	if out.Role, err = tok.GetString("rol"); err != nil {
		return nil, err
	}

	sid, err := tok.GetString("sid")
	if err != nil {
		return nil, err
	}
	if out.SessionID, err = uuid.Parse(sid); err != nil {
		return nil, err
	}
	return &out, nil
}
