package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/launchdeck/launchdeck/internal/domain/deployment"
	"github.com/launchdeck/launchdeck/internal/domain/target"
)

// FrameType is the type tag carried by every protocol frame.
type FrameType string

const (
	// Outbound
	FrameDeploy      FrameType = "deploy"
	FrameServiceLogs FrameType = "service_logs"

	// Inbound
	FrameInitialLogs    FrameType = "initial_logs"
	FrameStreamLogs     FrameType = "stream_logs"
	FrameDeployLogs     FrameType = "deploy_logs"
	FrameDeploySteps    FrameType = "deploy_steps"
	FrameDeployComplete FrameType = "deploy_complete"
)

// DefaultInlineArtifactLimit is the largest embedded artifact sent as plain
// content. Bigger artifacts are base64-encoded.
const DefaultInlineArtifactLimit = 64 * 1024

// envelope is the wire shape of every frame.
type envelope struct {
	Type    FrameType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame is a decoded inbound frame. The concrete type is one of
// LiveLogFrame, DeployLogFrame, DeployStepsFrame, DeployCompleteFrame,
// UnknownFrame, MalformedFrame or TextFrame.
type Frame interface {
	Type() FrameType
}

// LiveLogFrame carries lines for the live-log tail (initial_logs or
// stream_logs).
type LiveLogFrame struct {
	Kind  FrameType
	Lines []string
}

func (f LiveLogFrame) Type() FrameType { return f.Kind }

// UnassignedStepID collects deploy log lines that name no step.
const UnassignedStepID = "unassigned"

// DeployLogFrame carries one log line for a pipeline step.
type DeployLogFrame struct {
	StepID  string `json:"id"`
	Message string `json:"msg"`
}

func (DeployLogFrame) Type() FrameType { return FrameDeployLogs }

// DeployStepsFrame carries the worker's authoritative step list.
type DeployStepsFrame struct {
	Steps []StepDef
}

func (DeployStepsFrame) Type() FrameType { return FrameDeploySteps }

// DeployCompleteFrame reports the end of a deployment.
type DeployCompleteFrame struct {
	Success          bool   `json:"success"`
	Error            string `json:"error,omitempty"`
	DeployURL        string `json:"deployUrl,omitempty"`
	DeploymentTarget string `json:"deploymentTarget,omitempty"`

	// EC2
	InstanceID string `json:"instanceId,omitempty"`
	PublicIP   string `json:"publicIp,omitempty"`
	SSHUser    string `json:"sshUser,omitempty"`
	// ECS
	ClusterName  string `json:"clusterName,omitempty"`
	ServiceName  string `json:"serviceName,omitempty"`
	LoadBalancer string `json:"loadBalancerDns,omitempty"`
	// Amplify
	AmplifyAppID  string `json:"amplifyAppId,omitempty"`
	AmplifyBranch string `json:"amplifyBranch,omitempty"`
	// Elastic Beanstalk
	EBApplicationName string `json:"ebApplicationName,omitempty"`
	EBEnvironmentName string `json:"ebEnvironmentName,omitempty"`
	// Cloud Run
	CloudRunService string `json:"cloudRunService,omitempty"`
	CloudRunRegion  string `json:"cloudRunRegion,omitempty"`
}

func (DeployCompleteFrame) Type() FrameType { return FrameDeployComplete }

// Completion converts the frame into a domain completion.
func (f DeployCompleteFrame) Completion() deployment.Completion {
	done := deployment.Completion{
		Success:   f.Success,
		Error:     f.Error,
		DeployURL: f.DeployURL,
	}
	if t, ok := target.Parse(f.DeploymentTarget); ok {
		done.DeploymentTarget = t
	}

	p := &deployment.ProviderDetails{}
	if f.InstanceID != "" || f.PublicIP != "" {
		p.EC2 = &deployment.EC2Details{InstanceID: f.InstanceID, PublicIP: f.PublicIP, SSHUser: f.SSHUser}
	}
	if f.ClusterName != "" {
		p.ECS = &deployment.ECSDetails{ClusterName: f.ClusterName, ServiceName: f.ServiceName, LoadBalancer: f.LoadBalancer}
	}
	if f.AmplifyAppID != "" {
		p.Amplify = &deployment.AmplifyDetails{AppID: f.AmplifyAppID, Branch: f.AmplifyBranch}
	}
	if f.EBApplicationName != "" || f.EBEnvironmentName != "" {
		p.ElasticBeanstalk = &deployment.ElasticBeanstalkDetails{ApplicationName: f.EBApplicationName, EnvironmentName: f.EBEnvironmentName}
	}
	if f.CloudRunService != "" {
		p.CloudRun = &deployment.CloudRunDetails{ServiceName: f.CloudRunService, Region: f.CloudRunRegion}
	}
	if !p.IsEmpty() {
		done.Provider = p
	}
	return done
}

// UnknownFrame is a well-formed frame with a type this client does not know.
type UnknownFrame struct {
	Kind    FrameType
	Payload json.RawMessage
}

func (f UnknownFrame) Type() FrameType { return f.Kind }

// MalformedFrame is a structured frame whose payload does not match its type.
type MalformedFrame struct {
	Kind FrameType
	Err  error
}

func (f MalformedFrame) Type() FrameType { return f.Kind }

// TextFrame is a frame that is not structured data at all. The worker uses
// plain text to signal fatal failures.
type TextFrame struct {
	Text string
}

func (TextFrame) Type() FrameType { return "" }

// DecodeFrame decodes one inbound frame. It never fails: data that is not a
// JSON object is a TextFrame, and an object that does not match its type is
// a MalformedFrame.
func DecodeFrame(data []byte) Frame {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return TextFrame{Text: strings.TrimSpace(string(data))}
	}
	if env.Type == "" {
		return MalformedFrame{Err: errors.New("missing frame type")}
	}

	switch env.Type {
	case FrameInitialLogs, FrameStreamLogs:
		lines, err := decodeLines(env.Payload)
		if err != nil {
			return MalformedFrame{Kind: env.Type, Err: err}
		}
		return LiveLogFrame{Kind: env.Type, Lines: lines}

	case FrameDeployLogs:
		var f DeployLogFrame
		if err := json.Unmarshal(env.Payload, &f); err != nil {
			return MalformedFrame{Kind: env.Type, Err: err}
		}
		if f.StepID == "" {
			f.StepID = UnassignedStepID
		}
		return f

	case FrameDeploySteps:
		var defs []StepDef
		if err := json.Unmarshal(env.Payload, &defs); err != nil {
			return MalformedFrame{Kind: env.Type, Err: err}
		}
		return DeployStepsFrame{Steps: defs}

	case FrameDeployComplete:
		var f DeployCompleteFrame
		if err := json.Unmarshal(env.Payload, &f); err != nil {
			return MalformedFrame{Kind: env.Type, Err: err}
		}
		return f

	default:
		return UnknownFrame{Kind: env.Type, Payload: env.Payload}
	}
}

// decodeLines accepts a single string, a list of strings, or null.
func decodeLines(payload json.RawMessage) ([]string, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return nil, nil
	}
	var line string
	if err := json.Unmarshal(payload, &line); err == nil {
		return []string{line}, nil
	}
	var lines []string
	if err := json.Unmarshal(payload, &lines); err != nil {
		return nil, fmt.Errorf("log payload must be a string or a list of strings: %w", err)
	}
	return lines, nil
}

// wireArtifact is the transmitted form of an embedded artifact.
type wireArtifact struct {
	Name     string `json:"name"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Data     string `json:"data,omitempty"`
	Size     int    `json:"size"`
}

type deployPayload struct {
	DeployConfig json.RawMessage `json:"deployConfig"`
	Token        string          `json:"token"`
}

type serviceLogsPayload struct {
	ServiceName string `json:"serviceName"`
}

// EncodeDeploy builds the deploy frame for cfg. An embedded artifact larger
// than inlineLimit is base64-encoded before the frame is built.
func EncodeDeploy(cfg *deployment.Config, token string, inlineLimit int) ([]byte, error) {
	if cfg == nil {
		return nil, errors.New("deploy config is required")
	}
	if inlineLimit <= 0 {
		inlineLimit = DefaultInlineArtifactLimit
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deploy config: %w", err)
	}

	if cfg.BuildFile != nil {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("failed to encode deploy config: %w", err)
		}
		art := wireArtifact{Name: cfg.BuildFile.Name, Size: cfg.BuildFile.Size()}
		if art.Size > inlineLimit {
			art.Encoding = "base64"
			art.Data = base64.StdEncoding.EncodeToString([]byte(cfg.BuildFile.Content))
		} else {
			art.Content = cfg.BuildFile.Content
		}
		encoded, err := json.Marshal(art)
		if err != nil {
			return nil, fmt.Errorf("failed to encode build file: %w", err)
		}
		fields["buildFile"] = encoded
		if raw, err = json.Marshal(fields); err != nil {
			return nil, fmt.Errorf("failed to encode deploy config: %w", err)
		}
	}

	return encodeFrame(FrameDeploy, deployPayload{DeployConfig: raw, Token: token})
}

// EncodeServiceLogs builds the live-log subscription frame.
func EncodeServiceLogs(serviceName string) ([]byte, error) {
	if strings.TrimSpace(serviceName) == "" {
		return nil, errors.New("service name is required")
	}
	return encodeFrame(FrameServiceLogs, serviceLogsPayload{ServiceName: serviceName})
}

func encodeFrame(t FrameType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return json.Marshal(envelope{Type: t, Payload: raw})
}
