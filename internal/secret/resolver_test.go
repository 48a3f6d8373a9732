package secret

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSSMClient struct {
	params map[string]string
	err    error
	calls  int
}

func (f *fakeSSMClient) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	val, ok := f.params[*input.Name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{Message: aws.String("not found")}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Name: input.Name, Value: aws.String(val)},
	}, nil
}

func TestSSMResolver_CachesValues(t *testing.T) {
	client := &fakeSSMClient{params: map[string]string{TelegramTokenParam: "123:abc"}}
	r := NewSSMResolver(client)
	ctx := context.Background()

	for range 3 {
		val, err := r.GetSecret(ctx, TelegramTokenParam)
		require.NoError(t, err)
		assert.Equal(t, "123:abc", val)
	}
	assert.Equal(t, 1, client.calls)
}

func TestSSMResolver_NotFound(t *testing.T) {
	r := NewSSMResolver(&fakeSSMClient{params: map[string]string{}})

	_, err := r.GetSecret(context.Background(), WebhookSecretParam)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSSMResolver_ClientError(t *testing.T) {
	r := NewSSMResolver(&fakeSSMClient{err: errors.New("throttled")})

	_, err := r.GetSecret(context.Background(), TelegramTokenParam)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestEnvResolver(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	r := NewEnvResolver()

	val, err := r.GetSecret(context.Background(), TelegramTokenParam)
	require.NoError(t, err)
	assert.Equal(t, "env-token", val)

	t.Setenv("TELEGRAM_WEBHOOK_SECRET", "")
	_, err = r.GetSecret(context.Background(), WebhookSecretParam)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnvVarName(t *testing.T) {
	tests := map[string]string{
		"/todrive/telegram-bot-token":      "TELEGRAM_BOT_TOKEN",
		"/todrive/telegram-webhook-secret": "TELEGRAM_WEBHOOK_SECRET",
		"plain":                            "PLAIN",
	}
	for in, want := range tests {
		assert.Equal(t, want, EnvVarName(in), in)
	}
}

func TestChainResolver(t *testing.T) {
	ssmClient := &fakeSSMClient{params: map[string]string{}}
	env := &EnvResolver{lookup: func(name string) (string, bool) {
		if name == "TELEGRAM_BOT_TOKEN" {
			return "from-env", true
		}
		return "", false
	}}
	chain := ChainResolver{NewSSMResolver(ssmClient), env}
	ctx := context.Background()

	val, err := chain.GetSecret(ctx, TelegramTokenParam)
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)

	_, err = chain.GetSecret(ctx, WebhookSecretParam)
	assert.ErrorIs(t, err, ErrNotFound)

	broken := ChainResolver{NewSSMResolver(&fakeSSMClient{err: errors.New("denied")}), env}
	_, err = broken.GetSecret(ctx, TelegramTokenParam)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestOptional(t *testing.T) {
	env := &EnvResolver{lookup: func(string) (string, bool) { return "", false }}

	val, err := Optional(context.Background(), env, WebhookSecretParam)
	require.NoError(t, err)
	assert.Empty(t, val)
}
