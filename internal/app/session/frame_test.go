package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/launchdeck/launchdeck/internal/domain/deployment"
	"github.com/launchdeck/launchdeck/internal/domain/target"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, f Frame)
	}{
		{
			name:  "initial logs as list",
			input: `{"type":"initial_logs","payload":["a","b"]}`,
			check: func(t *testing.T, f Frame) {
				lf, ok := f.(LiveLogFrame)
				if !ok || lf.Kind != FrameInitialLogs || len(lf.Lines) != 2 {
					t.Errorf("Expected initial_logs with 2 lines, got %#v", f)
				}
			},
		},
		{
			name:  "stream logs as string",
			input: `{"type":"stream_logs","payload":"GET / 200"}`,
			check: func(t *testing.T, f Frame) {
				lf, ok := f.(LiveLogFrame)
				if !ok || len(lf.Lines) != 1 || lf.Lines[0] != "GET / 200" {
					t.Errorf("Expected one stream line, got %#v", f)
				}
			},
		},
		{
			name:  "deploy logs",
			input: `{"type":"deploy_logs","payload":{"id":"build","msg":"compiling"}}`,
			check: func(t *testing.T, f Frame) {
				lf, ok := f.(DeployLogFrame)
				if !ok || lf.StepID != "build" || lf.Message != "compiling" {
					t.Errorf("Expected deploy log for build, got %#v", f)
				}
			},
		},
		{
			name:  "deploy logs without id",
			input: `{"type":"deploy_logs","payload":{"msg":"orphan"}}`,
			check: func(t *testing.T, f Frame) {
				lf, ok := f.(DeployLogFrame)
				if !ok || lf.StepID != UnassignedStepID || lf.Message != "orphan" {
					t.Errorf("Expected deploy log for the unassigned step, got %#v", f)
				}
			},
		},
		{
			name:  "deploy steps",
			input: `{"type":"deploy_steps","payload":[{"id":"a","label":"A"},{"id":"b","label":"B"}]}`,
			check: func(t *testing.T, f Frame) {
				sf, ok := f.(DeployStepsFrame)
				if !ok || len(sf.Steps) != 2 || sf.Steps[1].Label != "B" {
					t.Errorf("Expected two step defs, got %#v", f)
				}
			},
		},
		{
			name:  "deploy steps with wrong payload",
			input: `{"type":"deploy_steps","payload":{"id":"a"}}`,
			check: func(t *testing.T, f Frame) {
				if _, ok := f.(MalformedFrame); !ok {
					t.Errorf("Expected malformed frame, got %#v", f)
				}
			},
		},
		{
			name:  "deploy complete",
			input: `{"type":"deploy_complete","payload":{"success":true,"deployUrl":"https://x","deploymentTarget":"ecs","clusterName":"c1","serviceName":"web"}}`,
			check: func(t *testing.T, f Frame) {
				cf, ok := f.(DeployCompleteFrame)
				if !ok || !cf.Success || cf.DeployURL != "https://x" {
					t.Fatalf("Expected successful completion, got %#v", f)
				}
				done := cf.Completion()
				if done.DeploymentTarget != target.TargetECS {
					t.Errorf("Expected target ecs, got %s", done.DeploymentTarget)
				}
				if done.Provider == nil || done.Provider.ECS == nil || done.Provider.ECS.ServiceName != "web" {
					t.Errorf("Expected ECS provider details, got %#v", done.Provider)
				}
			},
		},
		{
			name:  "unknown type",
			input: `{"type":"heartbeat","payload":{}}`,
			check: func(t *testing.T, f Frame) {
				uf, ok := f.(UnknownFrame)
				if !ok || uf.Kind != "heartbeat" {
					t.Errorf("Expected unknown heartbeat frame, got %#v", f)
				}
			},
		},
		{
			name:  "plain text",
			input: "Error: invalid token\n",
			check: func(t *testing.T, f Frame) {
				tf, ok := f.(TextFrame)
				if !ok || tf.Text != "Error: invalid token" {
					t.Errorf("Expected text frame, got %#v", f)
				}
			},
		},
		{
			name:  "json without type",
			input: `{"message":"hello"}`,
			check: func(t *testing.T, f Frame) {
				if _, ok := f.(MalformedFrame); !ok {
					t.Errorf("Expected malformed frame, got %#v", f)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, DecodeFrame([]byte(tt.input)))
		})
	}
}

func TestCompletionWithoutProvider(t *testing.T) {
	done := DeployCompleteFrame{Success: false, Error: "boom", DeploymentTarget: "nowhere"}.Completion()
	if done.Provider != nil {
		t.Errorf("Expected no provider details, got %#v", done.Provider)
	}
	if done.DeploymentTarget != "" {
		t.Errorf("Expected unknown target to be dropped, got %s", done.DeploymentTarget)
	}
}

func decodeDeploy(t *testing.T, raw []byte) (map[string]any, string) {
	t.Helper()
	var env struct {
		Type    string `json:"type"`
		Payload struct {
			DeployConfig map[string]any `json:"deployConfig"`
			Token        string         `json:"token"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Failed to decode deploy frame: %v", err)
	}
	if env.Type != "deploy" {
		t.Fatalf("Expected deploy frame, got %s", env.Type)
	}
	return env.Payload.DeployConfig, env.Payload.Token
}

func TestEncodeDeploy(t *testing.T) {
	cfg := &deployment.Config{
		ID:          "rec-1",
		ServiceName: "web",
		Port:        8080,
		UI:          deployment.UIState{ActiveTab: "env"},
	}

	raw, err := EncodeDeploy(cfg, "tok", 0)
	if err != nil {
		t.Fatalf("EncodeDeploy failed: %v", err)
	}
	config, token := decodeDeploy(t, raw)
	if token != "tok" {
		t.Errorf("Expected token tok, got %s", token)
	}
	if config["serviceName"] != "web" || config["port"] != float64(8080) {
		t.Errorf("Unexpected deploy config: %v", config)
	}
	if _, ok := config["UI"]; ok {
		t.Error("Expected UI state to stay out of the frame")
	}
}

func TestEncodeDeployArtifact(t *testing.T) {
	small := &deployment.Config{
		ServiceName: "web",
		BuildFile:   &deployment.Artifact{Name: "Dockerfile", Content: "FROM alpine"},
	}
	raw, err := EncodeDeploy(small, "tok", 64)
	if err != nil {
		t.Fatalf("EncodeDeploy failed: %v", err)
	}
	config, _ := decodeDeploy(t, raw)
	bf := config["buildFile"].(map[string]any)
	if bf["content"] != "FROM alpine" || bf["encoding"] != nil {
		t.Errorf("Expected inline artifact, got %v", bf)
	}

	content := strings.Repeat("RUN echo hi\n", 10)
	large := &deployment.Config{
		ServiceName: "web",
		BuildFile:   &deployment.Artifact{Name: "Dockerfile", Content: content},
	}
	raw, err = EncodeDeploy(large, "tok", 64)
	if err != nil {
		t.Fatalf("EncodeDeploy failed: %v", err)
	}
	config, _ = decodeDeploy(t, raw)
	bf = config["buildFile"].(map[string]any)
	if bf["encoding"] != "base64" || bf["content"] != nil {
		t.Fatalf("Expected base64 artifact, got %v", bf)
	}
	decoded, err := base64.StdEncoding.DecodeString(bf["data"].(string))
	if err != nil || string(decoded) != content {
		t.Errorf("Expected data to decode to the original content, got %q (%v)", decoded, err)
	}
	if bf["size"] != float64(len(content)) {
		t.Errorf("Expected size %d, got %v", len(content), bf["size"])
	}
}

func TestEncodeDeployNilConfig(t *testing.T) {
	if _, err := EncodeDeploy(nil, "tok", 0); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestEncodeServiceLogs(t *testing.T) {
	raw, err := EncodeServiceLogs("api")
	if err != nil {
		t.Fatalf("EncodeServiceLogs failed: %v", err)
	}
	want := `{"type":"service_logs","payload":{"serviceName":"api"}}`
	if string(raw) != want {
		t.Errorf("Expected %s, got %s", want, raw)
	}

	if _, err := EncodeServiceLogs("  "); err == nil {
		t.Error("Expected error for empty service name")
	}
}
