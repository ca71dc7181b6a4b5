package classifier

import (
	"fmt"
	"strings"
)

// RuleName identifies one rule of the rule-based fallback.
type RuleName string

const (
	RuleMultiService   RuleName = "multi-service"
	RuleDatabase       RuleName = "database"
	RuleWebsockets     RuleName = "websockets"
	RuleStatic         RuleName = "static"
	RuleManagedRuntime RuleName = "managed-runtime"
	RuleDockerfile     RuleName = "dockerfile"
)

// ruleCompatibility is the rule name recorded when a prior compatibility
// analysis decided the target.
const ruleCompatibility RuleName = "compatibility"

// ruleDefault is recorded when no rule matched.
const ruleDefault RuleName = "default"

// Policy is the ordered list of fallback rules. The first matching rule wins;
// when none matches the classifier falls back to EC2.
type Policy []RuleName

// DefaultPolicy returns the standard evaluation order.
func DefaultPolicy() Policy {
	return Policy{
		RuleMultiService,
		RuleDatabase,
		RuleWebsockets,
		RuleStatic,
		RuleManagedRuntime,
		RuleDockerfile,
	}
}

// ParsePolicy builds a Policy from rule names, as read from configuration.
// An empty list yields the default policy.
func ParsePolicy(names []string) (Policy, error) {
	if len(names) == 0 {
		return DefaultPolicy(), nil
	}

	known := make(map[RuleName]bool)
	for _, r := range DefaultPolicy() {
		known[r] = true
	}

	seen := make(map[RuleName]bool)
	policy := make(Policy, 0, len(names))
	for _, n := range names {
		rule := RuleName(strings.ToLower(strings.TrimSpace(n)))
		if !known[rule] {
			return nil, fmt.Errorf("unknown classifier rule %q", n)
		}
		if seen[rule] {
			return nil, fmt.Errorf("classifier rule %q listed twice", n)
		}
		seen[rule] = true
		policy = append(policy, rule)
	}
	return policy, nil
}

// Strings returns the rule names as plain strings.
func (p Policy) Strings() []string {
	out := make([]string, len(p))
	for i, r := range p {
		out[i] = string(r)
	}
	return out
}
