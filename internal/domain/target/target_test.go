package target

import "testing"

func TestSimplicityOrdering(t *testing.T) {
	order := BySimplicity()
	for i := 1; i < len(order); i++ {
		if order[i-1].Simplicity() >= order[i].Simplicity() {
			t.Errorf("Expected %s to be simpler than %s", order[i-1], order[i])
		}
	}

	if Target("heroku").Simplicity() != len(order) {
		t.Errorf("Expected unknown target to rank last, got %d", Target("heroku").Simplicity())
	}
}

func TestSimplest(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Target
		expected   Target
		ok         bool
	}{
		{"single", []Target{TargetEC2}, TargetEC2, true},
		{"amplify wins", []Target{TargetECS, TargetAmplify, TargetEC2}, TargetAmplify, true},
		{"cloud run before ecs", []Target{TargetECS, TargetCloudRun}, TargetCloudRun, true},
		{"beanstalk before cloud run", []Target{TargetCloudRun, TargetElasticBeanstalk}, TargetElasticBeanstalk, true},
		{"empty", nil, "", false},
		{"only unknown", []Target{"heroku"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Simplest(tt.candidates)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Target
		ok       bool
	}{
		{"amplify", TargetAmplify, true},
		{"ECS", TargetECS, true},
		{" cloud-run ", TargetCloudRun, true},
		{"beanstalk", TargetElasticBeanstalk, true},
		{"fargate", TargetECS, true},
		{"vm", TargetEC2, true},
		{"lambda", "", false},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.input)
		if ok != tt.ok || got != tt.expected {
			t.Errorf("Parse(%q) = %q, %v; expected %q, %v", tt.input, got, ok, tt.expected, tt.ok)
		}
	}
}

func TestIsContainer(t *testing.T) {
	if !TargetECS.IsContainer() || !TargetCloudRun.IsContainer() {
		t.Error("Expected ECS and Cloud Run to be container targets")
	}
	if TargetAmplify.IsContainer() || TargetEC2.IsContainer() {
		t.Error("Expected Amplify and EC2 not to be container targets")
	}
	if !TargetAmplify.IsStatic() {
		t.Error("Expected Amplify to be static")
	}
}
