package pasetotoken

import (
	"strings"

	paseto "aidanwoods.dev/go-paseto"
)

type Mode string

const (
	ModeLocal  Mode = "local"  // v4.local, encrypted with one shared key
	ModePublic Mode = "public" // v4.public, signed; verify-only nodes need just the public key
)

type Keys struct {
	Mode      Mode
	Symmetric *paseto.V4SymmetricKey
	Secret    *paseto.V4AsymmetricSecretKey
	Public    *paseto.V4AsymmetricPublicKey
}

// KeyStrings is key material as it appears in configuration.
type KeyStrings struct {
	Mode         Mode
	SymmetricHex string
	SecretHex    string
	PublicHex    string
}

func LoadKeys(in KeyStrings) (Keys, error) {
	switch in.Mode {
	case ModeLocal:
		hex := strings.TrimSpace(in.SymmetricHex)
		if hex == "" {
			return Keys{}, ConfigError{Msg: "local mode needs local_key_hex"}
		}
		k, err := paseto.V4SymmetricKeyFromHex(hex)
		if err != nil {
			return Keys{}, ConfigError{Msg: "local_key_hex: " + err.Error()}
		}
		return Keys{Mode: ModeLocal, Symmetric: &k}, nil

	case ModePublic:
		out := Keys{Mode: ModePublic}
		if hex := strings.TrimSpace(in.SecretHex); hex != "" {
			sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(hex)
			if err != nil {
				return Keys{}, ConfigError{Msg: "secret_key_hex: " + err.Error()}
			}
			pk := sk.Public()
			out.Secret, out.Public = &sk, &pk
		}
		if hex := strings.TrimSpace(in.PublicHex); hex != "" {
			pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(hex)
			if err != nil {
				return Keys{}, ConfigError{Msg: "public_key_hex: " + err.Error()}
			}
			out.Public = &pk
		}
		if out.Public == nil {
			return Keys{}, ConfigError{Msg: "public mode needs secret_key_hex or public_key_hex"}
		}
		return out, nil

	default:
		return Keys{}, ConfigError{Msg: "unknown mode " + string(in.Mode) + " (use local or public)"}
	}
}

// GenerateKeyStrings creates fresh key material for mode, ready to be pasted
// into the authentication.paseto config section.
func GenerateKeyStrings(mode Mode) (KeyStrings, error) {
	switch mode {
	case ModeLocal:
		k := paseto.NewV4SymmetricKey()
		return KeyStrings{Mode: mode, SymmetricHex: k.ExportHex()}, nil
	case ModePublic:
		sk := paseto.NewV4AsymmetricSecretKey()
		return KeyStrings{Mode: mode, SecretHex: sk.ExportHex(), PublicHex: sk.Public().ExportHex()}, nil
	default:
		return KeyStrings{}, ConfigError{Msg: "unknown mode " + string(mode) + " (use local or public)"}
	}
}
