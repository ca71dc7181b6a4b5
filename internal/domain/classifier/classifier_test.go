package classifier

import (
	"strings"
	"testing"

	"github.com/launchdeck/launchdeck/internal/domain/project"
	"github.com/launchdeck/launchdeck/internal/domain/target"
)

func TestClassifyRuleFallback(t *testing.T) {
	tests := []struct {
		name     string
		meta     project.Metadata
		expected target.Target
		rule     RuleName
	}{
		{
			name:     "monorepo services",
			meta:     project.Metadata{MonorepoServices: []string{"a", "b"}},
			expected: target.TargetECS,
			rule:     RuleMultiService,
		},
		{
			name:     "database",
			meta:     project.Metadata{Language: "python", RunCommand: "gunicorn app:app", RequiresDatabase: true, DatabaseType: "postgres"},
			expected: target.TargetECS,
			rule:     RuleDatabase,
		},
		{
			name:     "websockets",
			meta:     project.Metadata{Language: "node", RunCommand: "node server.js", UsesWebsockets: true},
			expected: target.TargetECS,
			rule:     RuleWebsockets,
		},
		{
			name:     "static node site",
			meta:     project.Metadata{Language: "typescript", Framework: "vite", BuildCommand: "npm run build", IsNodeStatic: true},
			expected: target.TargetAmplify,
			rule:     RuleStatic,
		},
		{
			name:     "managed runtime",
			meta:     project.Metadata{Language: "python", RunCommand: "python app.py"},
			expected: target.TargetElasticBeanstalk,
			rule:     RuleManagedRuntime,
		},
		{
			name:     "scanner eb flag",
			meta:     project.Metadata{Language: "elixir", RunCommand: "mix phx.server", IsEBLanguage: true},
			expected: target.TargetElasticBeanstalk,
			rule:     RuleManagedRuntime,
		},
		{
			name:     "dockerfile",
			meta:     project.Metadata{Language: "python", RunCommand: "python app.py", HasDockerfile: true},
			expected: target.TargetEC2,
			rule:     RuleDockerfile,
		},
		{
			name:     "default",
			meta:     project.Metadata{Language: "haskell", RunCommand: "./server"},
			expected: target.TargetEC2,
			rule:     ruleDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(&tt.meta)
			if d == nil {
				t.Fatal("Expected a decision, got nil")
			}
			if d.Target != tt.expected {
				t.Errorf("Expected target %s, got %s", tt.expected, d.Target)
			}
			if d.Rule != tt.rule {
				t.Errorf("Expected rule %s, got %s", tt.rule, d.Rule)
			}
			if d.Reason == "" {
				t.Error("Expected a reason")
			}
			if d.Warnings == nil {
				t.Error("Expected warnings to be non-nil")
			}
		})
	}
}

func TestClassifyNotDeployable(t *testing.T) {
	tests := []struct {
		name    string
		meta    project.Metadata
		verdict Verdict
	}{
		{
			name: "library regardless of flags",
			meta: project.Metadata{
				IsLibrary:        true,
				Language:         "go",
				RunCommand:       "./bin/server",
				MonorepoServices: []string{"a", "b"},
				Compatibility:    map[string]bool{"ecs": true},
			},
			verdict: VerdictLibrary,
		},
		{
			name:    "mobile without server",
			meta:    project.Metadata{UsesMobile: true, Language: "dart"},
			verdict: VerdictMobile,
		},
		{
			name:    "nothing detected",
			meta:    project.Metadata{},
			verdict: VerdictNoEntrypoint,
		},
		{
			name:    "all incompatible",
			meta:    project.Metadata{Language: "go", RunCommand: "./app", Compatibility: map[string]bool{"ecs": false, "ec2": false}},
			verdict: VerdictNoCompatibleTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := Classify(&tt.meta); d != nil {
				t.Fatalf("Expected nil decision, got %+v", d)
			}
			_, verdict := New(nil).ClassifyDetailed(&tt.meta)
			if verdict != tt.verdict {
				t.Errorf("Expected verdict %s, got %s", tt.verdict, verdict)
			}
			if verdict.Message() == "" {
				t.Error("Expected a verdict message")
			}
		})
	}

	if Classify(nil) != nil {
		t.Error("Expected nil metadata to be not deployable")
	}
}

func TestClassifyMobileWithBackend(t *testing.T) {
	meta := project.Metadata{UsesMobile: true, Language: "node", RunCommand: "node api.js"}
	d := Classify(&meta)
	if d == nil {
		t.Fatal("Expected mobile project with a server entry point to be deployable")
	}
}

func TestClassifyCompatibilityPicksSimplest(t *testing.T) {
	meta := project.Metadata{
		Language:         "node",
		RunCommand:       "node server.js",
		MonorepoServices: []string{"api", "worker"},
		Compatibility: map[string]bool{
			"ec2":               true,
			"ecs":               true,
			"cloud-run":         true,
			"elastic-beanstalk": false,
			"amplify":           false,
		},
	}

	d := Classify(&meta)
	if d == nil {
		t.Fatal("Expected a decision")
	}
	if d.Target != target.TargetCloudRun {
		t.Errorf("Expected cloud-run, got %s", d.Target)
	}
	if !strings.Contains(d.Reason, "simplest compatible target") {
		t.Errorf("Expected simplest compatible justification, got %q", d.Reason)
	}
}

func TestClassifyUnknownCompatibilityKeysFallBack(t *testing.T) {
	meta := project.Metadata{
		MonorepoServices: []string{"a", "b"},
		Compatibility:    map[string]bool{"heroku": true},
	}
	d := Classify(&meta)
	if d == nil || d.Target != target.TargetECS {
		t.Fatalf("Expected rule fallback to ecs, got %+v", d)
	}
}

func TestClassifyOverrideWarnings(t *testing.T) {
	meta := project.Metadata{
		Language:         "node",
		MonorepoServices: []string{"web", "api"},
		HasDockerfile:    true,
	}

	d := Classify(&meta)
	if d == nil {
		t.Fatal("Expected a decision")
	}
	found := false
	for _, w := range d.Warnings {
		if w == "Dockerfile present but ECS selected due to multi-service topology" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected Dockerfile override warning, got %v", d.Warnings)
	}
}

func TestClassifyMissingBuildCommandWarning(t *testing.T) {
	meta := project.Metadata{Language: "python", RunCommand: "python app.py", RequiresBuildButMissingCmd: true}
	d := Classify(&meta)
	if d == nil {
		t.Fatal("Expected a decision")
	}
	if len(d.Warnings) != 1 || !strings.Contains(d.Warnings[0], "no build command") {
		t.Errorf("Expected missing build command warning, got %v", d.Warnings)
	}
}

func TestCustomPolicyOrder(t *testing.T) {
	policy, err := ParsePolicy([]string{"dockerfile", "multi-service"})
	if err != nil {
		t.Fatalf("ParsePolicy failed: %v", err)
	}

	meta := project.Metadata{Language: "go", MonorepoServices: []string{"a", "b"}, HasDockerfile: true}
	d := New(policy).Classify(&meta)
	if d == nil {
		t.Fatal("Expected a decision")
	}
	if d.Target != target.TargetEC2 || d.Rule != RuleDockerfile {
		t.Errorf("Expected dockerfile rule to win, got %s via %s", d.Target, d.Rule)
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(p) != len(DefaultPolicy()) {
		t.Errorf("Expected default policy, got %v", p.Strings())
	}

	if _, err := ParsePolicy([]string{"static", "nope"}); err == nil {
		t.Error("Expected error for unknown rule")
	}
	if _, err := ParsePolicy([]string{"static", "STATIC"}); err == nil {
		t.Error("Expected error for duplicate rule")
	}
}
