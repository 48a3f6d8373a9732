// Package secret resolves the bot's secrets from SSM Parameter Store or the
// environment.
package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// Parameter names for the relay's secrets.
const (
	TelegramTokenParam = "/todrive/telegram-bot-token"
	WebhookSecretParam = "/todrive/telegram-webhook-secret"
)

// ErrNotFound is returned when no backend holds the named secret.
var ErrNotFound = errors.New("secret not found")

// SSMClient is the subset of *ssm.Client methods used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver retrieves secret values by parameter name.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SSMResolver fetches SecureString parameters and caches them for the life
// of the process, so a warm Lambda does not hit SSM on every update.
type SSMResolver struct {
	client SSMClient

	mu    sync.Mutex
	cache map[string]string
}

// NewSSMResolver returns a Resolver backed by SSM Parameter Store.
func NewSSMResolver(client SSMClient) *SSMResolver {
	return &SSMResolver{client: client, cache: make(map[string]string)}
}

func (r *SSMResolver) GetSecret(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	if v, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var nf *ssmtypes.ParameterNotFound
		if errors.As(err, &nf) {
			return "", fmt.Errorf("ssm parameter %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("ssm parameter %q has no value: %w", name, ErrNotFound)
	}

	val := *out.Parameter.Value
	r.mu.Lock()
	r.cache[name] = val
	r.mu.Unlock()
	return val, nil
}

// EnvResolver reads secrets from environment variables named after the last
// segment of the parameter: "/todrive/telegram-bot-token" is TELEGRAM_BOT_TOKEN.
type EnvResolver struct {
	lookup func(string) (string, bool)
}

// NewEnvResolver returns a Resolver over the process environment.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{lookup: os.LookupEnv}
}

func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	envName := EnvVarName(name)
	if val, ok := r.lookup(envName); ok && val != "" {
		return val, nil
	}
	return "", fmt.Errorf("environment variable %q (from param %q): %w", envName, name, ErrNotFound)
}

// EnvVarName converts a parameter name to its environment variable name.
func EnvVarName(name string) string {
	parts := strings.Split(name, "/")
	last := parts[len(parts)-1]
	return strings.ToUpper(strings.ReplaceAll(last, "-", "_"))
}

// ChainResolver asks each resolver in turn. A resolver failing with anything
// other than ErrNotFound stops the chain.
type ChainResolver []Resolver

func (c ChainResolver) GetSecret(ctx context.Context, name string) (string, error) {
	for _, r := range c {
		val, err := r.GetSecret(ctx, name)
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%q: %w", name, ErrNotFound)
}

// Optional resolves name and maps ErrNotFound to the empty string.
func Optional(ctx context.Context, r Resolver, name string) (string, error) {
	val, err := r.GetSecret(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return val, err
}
