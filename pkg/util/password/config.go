package password

import (
	"fmt"

	"github.com/bookspot/bookspot_backend/config"
)

const lowMemoryCapKiB = 32 * 1024

// FromConfig builds Params from the password section. Zero fields take the
// defaults. low_memory_mode caps memory at 32 MiB and adds one iteration to
// compensate.
func FromConfig(c config.PasswordConfig) (*Params, error) {
	if c.Algorithm != "" && c.Algorithm != "argon2id" {
		return nil, fmt.Errorf("password: unsupported algorithm %q", c.Algorithm)
	}

	p := DefaultParams()
	if c.MemoryKiB > 0 {
		p.Memory = c.MemoryKiB
	}
	if c.Iterations > 0 {
		p.Iterations = c.Iterations
	}
	if c.Parallelism > 0 {
		p.Parallelism = c.Parallelism
	}
	if c.SaltLength > 0 {
		p.SaltLength = c.SaltLength
	}
	if c.KeyLength > 0 {
		p.KeyLength = c.KeyLength
	}
	if c.LowMemoryMode && p.Memory > lowMemoryCapKiB {
		p.Memory = lowMemoryCapKiB
		p.Iterations++
	}
	return p, nil
}
