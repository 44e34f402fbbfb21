package authorize

import (
	"context"
	"fmt"

	"github.com/bookspot/bookspot_backend/internal/policy"
)

// ClaimsFor flattens the allow rules a user inherits in the sys domain into
// the claim set the scheduling predicates read. manage and * both become a
// resource wildcard. Deny rules are not represented and are left to Enforce.
func ClaimsFor(ctx context.Context, auth IAuthorization, userID string) (policy.Claims, error) {
	rules, err := auth.ImplicitPermissions(ctx, GroupSubject(userID), DomainSys)
	if err != nil {
		return nil, fmt.Errorf("implicit permissions: %w", err)
	}

	pairs := make([][2]string, 0, len(rules))
	for _, r := range rules {
		if r.Effect != EffectAllow {
			continue
		}
		act := string(r.Action)
		if r.Action == ActionManage {
			act = string(WildcardAction)
		}
		pairs = append(pairs, [2]string{string(r.Object), act})
	}
	return policy.NewClaims(pairs...), nil
}
