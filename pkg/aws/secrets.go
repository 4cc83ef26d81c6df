package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the part of Secrets Manager the store credentials loader calls.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// StoreCredentials is the JSON document kept under the shop's database secret.
// Keys mirror the environment variables they replace.
type StoreCredentials struct {
	MongoURL         string `json:"MONGO_DB_URL"`
	PostgresUser     string `json:"POSTGRES_USER"`
	PostgresPassword string `json:"POSTGRES_PASSWORD"`
	PostgresDB       string `json:"POSTGRES_DB"`
	PostgresHost     string `json:"POSTGRES_HOST"`
	PostgresPort     string `json:"POSTGRES_PORT"`
	RedisURL         string `json:"REDIS_URL"`
}

// Empty reports whether the secret carried no usable value.
func (c StoreCredentials) Empty() bool {
	return c == StoreCredentials{}
}

// SecretsClient reads secrets once per process.
type SecretsClient struct {
	client SecretsAPI
	cache  map[string]string
	mu     sync.RWMutex
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return NewSecretsClientWithClient(secretsmanager.NewFromConfig(cfg))
}

func NewSecretsClientWithClient(client SecretsAPI) *SecretsClient {
	return &SecretsClient{client: client, cache: make(map[string]string)}
}

func (s *SecretsClient) secretString(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	v, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: sdkaws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	s.mu.Lock()
	s.cache[name] = *out.SecretString
	s.mu.Unlock()
	return *out.SecretString, nil
}

// StoreCredentials loads the database and cache connection settings kept in name.
func (s *SecretsClient) StoreCredentials(ctx context.Context, name string) (*StoreCredentials, error) {
	raw, err := s.secretString(ctx, name)
	if err != nil {
		return nil, err
	}
	var creds StoreCredentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("secret %s is not a credentials object: %w", name, err)
	}
	if creds.Empty() {
		return nil, fmt.Errorf("secret %s holds no store credentials", name)
	}
	return &creds, nil
}
