package pasetotoken

import (
	"errors"
	"fmt"
)

// ErrNoSession is returned when asked to issue a token outside a session.
var ErrNoSession = errors.New("paseto: token requires a session id")

// ConfigError reports unusable key material or manager settings.
type ConfigError struct{ Msg string }

func (e ConfigError) Error() string { return "paseto config: " + e.Msg }

// TokenError wraps every reason a presented token was rejected.
type TokenError struct{ Err error }

func (e TokenError) Error() string { return fmt.Sprintf("invalid token: %v", e.Err) }
func (e TokenError) Unwrap() error { return e.Err }
