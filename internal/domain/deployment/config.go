// Package deployment defines the user-editable deployment configuration, its
// persistable projection, and the provider details a completed deploy reports.
package deployment

import (
	"github.com/launchdeck/launchdeck/internal/domain/target"
)

// Status is the lifecycle status of a deployed service, as stored on the
// deployment record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusDeploying Status = "deploying"
	StatusRunning   Status = "running"
	StatusFailed    Status = "failed"
)

// Config is the deployment configuration being edited and submitted.
// The UI layer owns the draft; everything tagged json:"-" is ephemeral.
type Config struct {
	// ID is the identity of the persisted deployment record. Empty until
	// a record exists.
	ID string `json:"id,omitempty"`

	ServiceName string `json:"serviceName"`
	RepoURL     string `json:"repoUrl,omitempty"`
	Branch      string `json:"branch,omitempty"`
	WorkDir     string `json:"workdir,omitempty"`
	Region      string `json:"region,omitempty"`

	InstallCommand string            `json:"installCmd,omitempty"`
	BuildCommand   string            `json:"buildCmd,omitempty"`
	RunCommand     string            `json:"runCmd,omitempty"`
	Port           int               `json:"port,omitempty"`
	EnvVars        map[string]string `json:"envVars,omitempty"`

	DeploymentTarget target.Target `json:"deploymentTarget,omitempty"`
	TargetReason     string        `json:"deploymentReason,omitempty"`
	TargetWarnings   []string      `json:"deploymentWarnings,omitempty"`

	// BuildFile is an optional custom build file (e.g. a Dockerfile)
	// shipped with the submission.
	BuildFile *Artifact `json:"buildFile,omitempty"`

	Status    Status           `json:"status,omitempty"`
	DeployURL string           `json:"deployUrl,omitempty"`
	Provider  *ProviderDetails `json:"provider,omitempty"`

	UI UIState `json:"-"`
}

// UIState holds form state that is never persisted or sent to the worker.
type UIState struct {
	ActiveTab    string
	AdvancedOpen bool
	EnvEditorRow int
	Validating   bool
}

// Artifact is a file embedded in the configuration.
type Artifact struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Size returns the artifact size in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Content)
}

// ProviderDetails are target-specific facts reported by a completed deploy.
type ProviderDetails struct {
	EC2              *EC2Details              `json:"ec2,omitempty"`
	ECS              *ECSDetails              `json:"ecs,omitempty"`
	Amplify          *AmplifyDetails          `json:"amplify,omitempty"`
	ElasticBeanstalk *ElasticBeanstalkDetails `json:"elasticBeanstalk,omitempty"`
	CloudRun         *CloudRunDetails         `json:"cloudRun,omitempty"`
}

// IsEmpty returns true if no provider section is set.
func (p *ProviderDetails) IsEmpty() bool {
	return p == nil || (p.EC2 == nil && p.ECS == nil && p.Amplify == nil && p.ElasticBeanstalk == nil && p.CloudRun == nil)
}

type EC2Details struct {
	InstanceID string `json:"instanceId,omitempty"`
	PublicIP   string `json:"publicIp,omitempty"`
	SSHUser    string `json:"sshUser,omitempty"`
}

type ECSDetails struct {
	ClusterName  string `json:"clusterName,omitempty"`
	ServiceName  string `json:"serviceName,omitempty"`
	LoadBalancer string `json:"loadBalancer,omitempty"`
}

type AmplifyDetails struct {
	AppID  string `json:"appId,omitempty"`
	Branch string `json:"branch,omitempty"`
}

type ElasticBeanstalkDetails struct {
	ApplicationName string `json:"applicationName,omitempty"`
	EnvironmentName string `json:"environmentName,omitempty"`
}

type CloudRunDetails struct {
	ServiceName string `json:"serviceName,omitempty"`
	Region      string `json:"region,omitempty"`
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	if c.EnvVars != nil {
		out.EnvVars = make(map[string]string, len(c.EnvVars))
		for k, v := range c.EnvVars {
			out.EnvVars[k] = v
		}
	}
	if c.TargetWarnings != nil {
		out.TargetWarnings = append([]string(nil), c.TargetWarnings...)
	}
	if c.BuildFile != nil {
		bf := *c.BuildFile
		out.BuildFile = &bf
	}
	if c.Provider != nil {
		out.Provider = c.Provider.clone()
	}
	return &out
}

func (p *ProviderDetails) clone() *ProviderDetails {
	out := &ProviderDetails{}
	if p.EC2 != nil {
		v := *p.EC2
		out.EC2 = &v
	}
	if p.ECS != nil {
		v := *p.ECS
		out.ECS = &v
	}
	if p.Amplify != nil {
		v := *p.Amplify
		out.Amplify = &v
	}
	if p.ElasticBeanstalk != nil {
		v := *p.ElasticBeanstalk
		out.ElasticBeanstalk = &v
	}
	if p.CloudRun != nil {
		v := *p.CloudRun
		out.CloudRun = &v
	}
	return out
}

// Completion is the outcome of a finished deployment as reported by the
// worker.
type Completion struct {
	Success          bool
	Error            string
	DeployURL        string
	DeploymentTarget target.Target
	Provider         *ProviderDetails
}

// ApplyCompletion patches the configuration with a successful completion.
// Failed completions leave the configuration untouched. It returns true if
// the configuration was modified.
func (c *Config) ApplyCompletion(done Completion) bool {
	if !done.Success {
		return false
	}
	c.Status = StatusRunning
	if done.DeployURL != "" {
		c.DeployURL = done.DeployURL
	}
	if done.DeploymentTarget != "" {
		c.DeploymentTarget = done.DeploymentTarget
	}
	if !done.Provider.IsEmpty() {
		c.Provider = done.Provider.clone()
	}
	return true
}
