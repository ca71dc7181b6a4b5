package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager reads the token from an AWS Secrets Manager secret. The
// secret is either the raw token or a JSON object with a "token" field.
type AWSSecretsManager struct {
	client   SecretsManagerAPI
	secretID string
}

// NewAWSSecretsManager creates a provider using the default AWS credential
// chain.
func NewAWSSecretsManager(ctx context.Context, region, secretID string) (*AWSSecretsManager, error) {
	if secretID == "" {
		return nil, fmt.Errorf("aws secrets manager: secret id is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAWSSecretsManagerWithClient(secretsmanager.NewFromConfig(cfg), secretID), nil
}

// NewAWSSecretsManagerWithClient creates a provider over an existing client.
func NewAWSSecretsManagerWithClient(client SecretsManagerAPI, secretID string) *AWSSecretsManager {
	return &AWSSecretsManager{client: client, secretID: secretID}
}

func (a *AWSSecretsManager) Token(ctx context.Context) (string, error) {
	out, err := a.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(a.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", a.secretID, err)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	}
	return nonEmpty(tokenFromSecret(value))
}

// tokenFromSecret extracts the "token" field of a JSON secret, or returns
// the secret unchanged.
func tokenFromSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return trimmed
	}
	if token, ok := fields["token"].(string); ok {
		return token
	}
	return trimmed
}
