package authorize

import "github.com/bookspot/bookspot_backend/config"

const defaultModelPath = "config/casbin_model.conf"

// Config selects the Casbin model and how decisions are made and recorded.
type Config struct {
	CasbinModelPath string
	// EnableAudit wraps the authorizer so every decision is logged.
	EnableAudit bool
	// AdminBypass lets role:admin skip the policy lookup.
	AdminBypass bool
}

// FromCentralConfig maps the authorization section; an empty model path
// falls back to the shipped model.
func FromCentralConfig(c config.AuthorizationConfig) Config {
	out := Config{
		CasbinModelPath: c.CasbinModelPath,
		EnableAudit:     c.EnableAudit,
		AdminBypass:     c.SuperadminBypass,
	}
	if out.CasbinModelPath == "" {
		out.CasbinModelPath = defaultModelPath
	}
	return out
}

// Options are the NewAuthorization options c asks for.
func (c Config) Options() []Option {
	var opts []Option
	if !c.AdminBypass {
		opts = append(opts, WithoutAdminBypass())
	}
	return opts
}
