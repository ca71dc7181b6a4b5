// Package classifier decides which cloud target a detected project should be
// deployed to, with a human-readable justification.
//
// The decision tree is evaluated top to bottom and the first match wins:
// non-deployable projects are rejected first, then a prior compatibility
// analysis (if any) picks the simplest compatible target, and otherwise the
// rule-based fallback of the configured Policy applies.
package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/launchdeck/launchdeck/internal/domain/project"
	"github.com/launchdeck/launchdeck/internal/domain/target"
)

// Decision is the outcome of classifying a project.
type Decision struct {
	Target   target.Target `json:"target"`
	Reason   string        `json:"reason"`
	Warnings []string      `json:"warnings"`
	Rule     RuleName      `json:"rule,omitempty"`
}

// Verdict explains why a project was or was not deployable.
type Verdict string

const (
	VerdictDeployable         Verdict = "deployable"
	VerdictLibrary            Verdict = "library"
	VerdictMobile             Verdict = "mobile"
	VerdictNoEntrypoint       Verdict = "no-entrypoint"
	VerdictNoCompatibleTarget Verdict = "no-compatible-target"
)

// Message returns a user-facing explanation of a non-deployable verdict.
func (v Verdict) Message() string {
	switch v {
	case VerdictLibrary:
		return "project is a library with no runnable service"
	case VerdictMobile:
		return "project is a mobile app with no server entry point"
	case VerdictNoEntrypoint:
		return "no run command and no language detected"
	case VerdictNoCompatibleTarget:
		return "compatibility analysis found no compatible target"
	default:
		return ""
	}
}

// Classifier evaluates project metadata against a rule Policy. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	policy Policy
}

// New creates a classifier. A nil policy uses DefaultPolicy.
func New(policy Policy) *Classifier {
	if len(policy) == 0 {
		policy = DefaultPolicy()
	}
	return &Classifier{policy: policy}
}

// Policy returns the rule order used by the classifier.
func (c *Classifier) Policy() Policy {
	return append(Policy(nil), c.policy...)
}

var defaultClassifier = New(nil)

// Classify classifies metadata with the default policy. It returns nil when
// no target can be proposed.
func Classify(m *project.Metadata) *Decision {
	return defaultClassifier.Classify(m)
}

// Classify returns the target decision for m, or nil when the project is not
// deployable.
func (c *Classifier) Classify(m *project.Metadata) *Decision {
	d, verdict := c.ClassifyDetailed(m)
	if verdict != VerdictDeployable {
		return nil
	}
	return d
}

// ClassifyDetailed returns the decision together with the verdict. The
// decision is nil whenever the verdict is not VerdictDeployable.
func (c *Classifier) ClassifyDetailed(m *project.Metadata) (*Decision, Verdict) {
	if m == nil {
		return nil, VerdictNoEntrypoint
	}

	if v := deployability(m); v != VerdictDeployable {
		return nil, v
	}

	var d *Decision
	if m.HasCompatibility() {
		compatible, analysed := compatibleTargets(m.Compatibility)
		if analysed && len(compatible) == 0 {
			return nil, VerdictNoCompatibleTarget
		}
		if best, ok := target.Simplest(compatible); ok {
			d = &Decision{
				Target: best,
				Reason: fmt.Sprintf("%s is the simplest compatible target", best.DisplayName()),
				Rule:   ruleCompatibility,
			}
		}
	}

	if d == nil {
		d = c.fallback(m)
	}

	if m.RequiresBuildButMissingCmd {
		d.Warnings = append(d.Warnings, "build step required but no build command detected")
	}
	if d.Warnings == nil {
		d.Warnings = []string{}
	}
	return d, VerdictDeployable
}

// deployability short-circuits projects with no runnable service.
func deployability(m *project.Metadata) Verdict {
	switch {
	case m.IsLibrary:
		return VerdictLibrary
	case m.UsesMobile && !m.HasServerEntrypoint():
		return VerdictMobile
	case !m.HasServerEntrypoint() && !m.HasLanguage():
		return VerdictNoEntrypoint
	}
	return VerdictDeployable
}

// compatibleTargets returns the known targets marked compatible. The second
// value is false if no entry names a known target, meaning the map carries
// no usable analysis.
func compatibleTargets(compat map[string]bool) ([]target.Target, bool) {
	names := make([]string, 0, len(compat))
	for name := range compat {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []target.Target
	analysed := false
	for _, name := range names {
		t, ok := target.Parse(name)
		if !ok {
			continue
		}
		analysed = true
		if compat[name] {
			out = append(out, t)
		}
	}
	return out, analysed
}

func (c *Classifier) fallback(m *project.Metadata) *Decision {
	for _, rule := range c.policy {
		if d := evaluate(rule, m); d != nil {
			d.Rule = rule
			return d
		}
	}
	return &Decision{
		Target: target.TargetEC2,
		Reason: "no specialised platform fits; defaulting to a general-purpose instance",
		Rule:   ruleDefault,
	}
}

func evaluate(rule RuleName, m *project.Metadata) *Decision {
	switch rule {
	case RuleMultiService:
		if !m.IsMultiService() {
			return nil
		}
		cause := "multi-service topology"
		return &Decision{
			Target:   target.TargetECS,
			Reason:   fmt.Sprintf("%s (%d services) needs container orchestration", cause, len(m.MonorepoServices)),
			Warnings: overriddenSignals(m, cause),
		}
	case RuleDatabase:
		if !m.RequiresDatabase {
			return nil
		}
		cause := "database requirement"
		reason := "managed database requirement needs private networking next to the service"
		if m.DatabaseType != "" {
			reason = fmt.Sprintf("managed %s database needs private networking next to the service", m.DatabaseType)
		}
		return &Decision{
			Target:   target.TargetECS,
			Reason:   reason,
			Warnings: overriddenSignals(m, cause),
		}
	case RuleWebsockets:
		if !m.UsesWebsockets {
			return nil
		}
		cause := "long-lived websocket connections"
		return &Decision{
			Target:   target.TargetECS,
			Reason:   "long-lived websocket connections need persistent containers",
			Warnings: overriddenSignals(m, cause),
		}
	case RuleStatic:
		if !m.IsNodeStatic || strings.TrimSpace(m.RunCommand) != "" {
			return nil
		}
		d := &Decision{
			Target: target.TargetAmplify,
			Reason: "static front-end build with no server process",
		}
		if m.HasDockerfile {
			d.Warnings = append(d.Warnings, "Dockerfile present but Amplify selected because the app builds to static assets")
		}
		return d
	case RuleManagedRuntime:
		if m.HasDockerfile || !m.SupportsManagedRuntime() {
			return nil
		}
		lang := m.Language
		if lang == "" {
			lang = m.Framework
		}
		return &Decision{
			Target: target.TargetElasticBeanstalk,
			Reason: fmt.Sprintf("%s has a managed runtime and no custom Dockerfile", lang),
		}
	case RuleDockerfile:
		if !m.HasDockerfile {
			return nil
		}
		return &Decision{
			Target: target.TargetEC2,
			Reason: "custom Dockerfile present; running the container with full control",
		}
	}
	return nil
}

// overriddenSignals lists simpler-looking signals that an orchestration rule
// overrode.
func overriddenSignals(m *project.Metadata, cause string) []string {
	var warnings []string
	if m.HasDockerfile {
		warnings = append(warnings, fmt.Sprintf("Dockerfile present but ECS selected due to %s", cause))
	}
	if m.IsNodeStatic {
		warnings = append(warnings, fmt.Sprintf("static site shape detected but ECS selected due to %s", cause))
	}
	if !m.HasDockerfile && m.SupportsManagedRuntime() {
		warnings = append(warnings, fmt.Sprintf("managed runtime available but ECS selected due to %s", cause))
	}
	return warnings
}
