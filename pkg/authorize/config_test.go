package authorize

import (
	"testing"

	"github.com/bookspot/bookspot_backend/config"
)

func TestFromCentralConfig(t *testing.T) {
	tests := []struct {
		name     string
		in       config.AuthorizationConfig
		wantPath string
		wantOpts int
	}{
		{name: "empty uses shipped model and strict admins", wantPath: "config/casbin_model.conf", wantOpts: 1},
		{
			name:     "custom model with bypass",
			in:       config.AuthorizationConfig{CasbinModelPath: "/etc/bookspot/model.conf", SuperadminBypass: true},
			wantPath: "/etc/bookspot/model.conf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromCentralConfig(tt.in)
			if got.CasbinModelPath != tt.wantPath {
				t.Errorf("CasbinModelPath = %q, want %q", got.CasbinModelPath, tt.wantPath)
			}
			if n := len(got.Options()); n != tt.wantOpts {
				t.Errorf("len(Options()) = %d, want %d", n, tt.wantOpts)
			}
		})
	}
}
