package credentials

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// SecretManagerAPI is the subset of the GCP Secret Manager client used here.
type SecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretManager reads the token from the latest version of a GCP secret.
type GCPSecretManager struct {
	client SecretManagerAPI
	name   string
}

// NewGCPSecretManager creates a provider using application default
// credentials. secret is either a short secret name or a full resource name.
func NewGCPSecretManager(ctx context.Context, project, secret string) (*GCPSecretManager, error) {
	name, err := secretVersionName(project, secret)
	if err != nil {
		return nil, err
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &GCPSecretManager{client: client, name: name}, nil
}

// NewGCPSecretManagerWithClient creates a provider over an existing client.
func NewGCPSecretManagerWithClient(client SecretManagerAPI, project, secret string) (*GCPSecretManager, error) {
	name, err := secretVersionName(project, secret)
	if err != nil {
		return nil, err
	}
	return &GCPSecretManager{client: client, name: name}, nil
}

func (g *GCPSecretManager) Token(ctx context.Context) (string, error) {
	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: g.name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", g.name, err)
	}
	return nonEmpty(tokenFromSecret(string(resp.GetPayload().GetData())))
}

func secretVersionName(project, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("gcp secret manager: secret id is required")
	}
	if strings.HasPrefix(secret, "projects/") {
		if !strings.Contains(secret, "/versions/") {
			secret += "/versions/latest"
		}
		return secret, nil
	}
	if project == "" {
		return "", fmt.Errorf("gcp secret manager: project is required for secret %s", secret)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, secret), nil
}
