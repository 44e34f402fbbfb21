// Package constants holds process-wide names shared by the CLI and config loader.
package constants

const (
	AppName      = "bookspot"
	ConfigName   = "config"
	ConfigFormat = "yaml"
	EnvPrefix    = "BOOKSPOT"
	// DefaultConfigPath is where the CLI looks for config.yaml unless --config is given.
	DefaultConfigPath = "."
)
