// Package target defines the cloud hosting modes a project can be deployed to.
package target

import "strings"

// Target represents a cloud hosting mode.
type Target string

const (
	TargetAmplify          Target = "amplify"           // Static hosting with managed CDN
	TargetElasticBeanstalk Target = "elastic-beanstalk" // Managed PaaS runtime
	TargetCloudRun         Target = "cloud-run"         // Serverless containers
	TargetECS              Target = "ecs"               // Container orchestration
	TargetEC2              Target = "ec2"               // Raw VM, full control
)

// String returns the string representation of the target.
func (t Target) String() string {
	return string(t)
}

// Simplicity returns the operational simplicity rank of the target.
// Lower is simpler. Unknown targets rank after every known one.
func (t Target) Simplicity() int {
	for i, known := range BySimplicity() {
		if t == known {
			return i
		}
	}
	return len(BySimplicity())
}

// IsContainer returns true if the target runs the project as a container image.
func (t Target) IsContainer() bool {
	switch t {
	case TargetCloudRun, TargetECS:
		return true
	default:
		return false
	}
}

// IsStatic returns true if the target only serves prebuilt assets.
func (t Target) IsStatic() bool {
	return t == TargetAmplify
}

// DisplayName returns a human-readable name for the target.
func (t Target) DisplayName() string {
	switch t {
	case TargetAmplify:
		return "AWS Amplify"
	case TargetElasticBeanstalk:
		return "AWS Elastic Beanstalk"
	case TargetCloudRun:
		return "Google Cloud Run"
	case TargetECS:
		return "AWS ECS (Fargate)"
	case TargetEC2:
		return "AWS EC2"
	default:
		return string(t)
	}
}

// BySimplicity returns all targets ordered from simplest to most capable.
func BySimplicity() []Target {
	return []Target{
		TargetAmplify,
		TargetElasticBeanstalk,
		TargetCloudRun,
		TargetECS,
		TargetEC2,
	}
}

// Simplest returns the simplest target from the given set.
// The second return value is false when the set contains no known target.
func Simplest(candidates []Target) (Target, bool) {
	best := Target("")
	bestRank := len(BySimplicity())
	for _, c := range candidates {
		if rank := c.Simplicity(); rank < bestRank {
			best, bestRank = c, rank
		}
	}
	return best, best != ""
}

// Parse parses a string into a Target.
func Parse(s string) (Target, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, valid := range BySimplicity() {
		if Target(normalized) == valid {
			return valid, true
		}
	}
	// Check aliases
	switch normalized {
	case "eb", "beanstalk", "elasticbeanstalk", "elastic_beanstalk":
		return TargetElasticBeanstalk, true
	case "cloudrun", "cloud_run", "gcp-run":
		return TargetCloudRun, true
	case "fargate", "ecs-fargate":
		return TargetECS, true
	case "vm", "instance":
		return TargetEC2, true
	}
	return "", false
}
