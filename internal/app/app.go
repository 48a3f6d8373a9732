// Package app wires the relay's components from configuration.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/habat-tech/todrive/internal/adapter"
	"github.com/habat-tech/todrive/internal/adapter/googledrive"
	"github.com/habat-tech/todrive/internal/adapter/memory"
	"github.com/habat-tech/todrive/internal/auth"
	"github.com/habat-tech/todrive/internal/config"
	"github.com/habat-tech/todrive/internal/credential"
	"github.com/habat-tech/todrive/internal/crypto"
	"github.com/habat-tech/todrive/internal/handler"
	"github.com/habat-tech/todrive/internal/lease"
	"github.com/habat-tech/todrive/internal/secret"
	"github.com/habat-tech/todrive/internal/telegram"
	"github.com/habat-tech/todrive/internal/transfer"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    credential.Store
	Manager  *auth.Manager
	Telegram *telegram.Client
	Bot      *handler.BotHandler
	Webhook  *handler.WebhookHandler
}

type options struct {
	withoutTelegram bool
	authOut         io.Writer
	telegramOpts    []telegram.ClientOption
	awsConfig       *aws.Config
}

// Option adjusts NewApp.
type Option func(*options)

// WithoutTelegram skips the bot client, for commands that only touch credentials.
func WithoutTelegram() Option {
	return func(o *options) { o.withoutTelegram = true }
}

// WithAuthOutput sets where the loopback flow prints the consent URL.
func WithAuthOutput(w io.Writer) Option {
	return func(o *options) { o.authOut = w }
}

// WithTelegramOptions passes options to the bot client.
func WithTelegramOptions(opts ...telegram.ClientOption) Option {
	return func(o *options) { o.telegramOpts = append(o.telegramOpts, opts...) }
}

// WithAWSConfig uses cfg instead of loading the default AWS configuration.
func WithAWSConfig(cfg aws.Config) Option {
	return func(o *options) { o.awsConfig = &cfg }
}

// builder loads the AWS configuration on first use, so file and memory
// deployments run without any AWS setup.
type builder struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	opts   options

	aws    *aws.Config
	dynamo *dynamodb.Client
}

func (b *builder) awsConfig() (aws.Config, error) {
	if b.aws != nil {
		return *b.aws, nil
	}
	if b.opts.awsConfig != nil {
		b.aws = b.opts.awsConfig
		return *b.aws, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(b.ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	b.aws = &cfg
	return cfg, nil
}

func (b *builder) dynamoClient() (*dynamodb.Client, error) {
	if b.dynamo != nil {
		return b.dynamo, nil
	}
	cfg, err := b.awsConfig()
	if err != nil {
		return nil, err
	}
	b.dynamo = dynamodb.NewFromConfig(cfg)
	return b.dynamo, nil
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	b := &builder{ctx: ctx, cfg: cfg, logger: logger}
	b.opts.authOut = os.Stderr
	for _, opt := range opts {
		opt(&b.opts)
	}

	encryptor, err := b.encryptor()
	if err != nil {
		return nil, err
	}
	store, clientConfigRef, err := b.store(encryptor)
	if err != nil {
		return nil, err
	}
	locker, err := b.locker()
	if err != nil {
		return nil, err
	}

	var authorizer auth.Authorizer = auth.HeadlessAuthorizer{}
	if cfg.Auth.Interactive {
		authorizer = &auth.LoopbackAuthorizer{
			Port:    cfg.Auth.CallbackPort,
			Timeout: cfg.Auth.Timeout,
			Out:     b.opts.authOut,
			Logger:  logger,
		}
	}
	managerOpts := []auth.Option{
		auth.WithLocker(locker),
		auth.WithClientConfigRef(clientConfigRef),
	}
	if !cfg.DevMode {
		managerOpts = append(managerOpts, auth.WithAccountLookup(auth.LookupAccount))
	}
	manager := auth.NewManager(store, store, authorizer, logger, managerOpts...)

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		Manager: manager,
	}
	if b.opts.withoutTelegram {
		return a, nil
	}

	resolver, err := b.resolver()
	if err != nil {
		return nil, err
	}
	token, err := resolver.GetSecret(ctx, cfg.Telegram.TokenParam)
	if err != nil {
		return nil, fmt.Errorf("resolving telegram bot token: %w", err)
	}
	webhookSecret, err := secret.Optional(ctx, resolver, cfg.Telegram.WebhookSecretParam)
	if err != nil {
		return nil, fmt.Errorf("resolving webhook secret: %w", err)
	}

	tgOpts := append([]telegram.ClientOption{telegram.WithMaxDownloadBytes(cfg.Telegram.MaxDownloadBytes)}, b.opts.telegramOpts...)
	tg, err := telegram.NewClient(token, logger, tgOpts...)
	if err != nil {
		return nil, err
	}

	pipeline := transfer.NewPipeline(tg, manager, b.uploaders(), logger, transfer.WithTempDir(cfg.TempDir))
	a.Telegram = tg
	a.Bot = handler.NewBotHandler(tg, store, pipeline, manager, cfg.TempDir, logger)
	a.Webhook = handler.NewWebhookHandler(a.Bot, webhookSecret, logger)
	return a, nil
}

func (b *builder) encryptor() (crypto.Encryptor, error) {
	if b.cfg.Storage.KMSKeyID == "" {
		return nil, nil
	}
	if b.cfg.DevMode {
		b.logger.Info("using mock encryptor", slog.Bool("dev_mode", true))
		return crypto.NewMockEncryptor(), nil
	}
	awsCfg, err := b.awsConfig()
	if err != nil {
		return nil, err
	}
	return crypto.NewKMSService(kms.NewFromConfig(awsCfg), b.cfg.Storage.KMSKeyID), nil
}

// store returns the credential store and the client configuration location
// recorded in session records.
func (b *builder) store(encryptor crypto.Encryptor) (credential.Store, string, error) {
	switch b.cfg.Storage.Backend {
	case config.BackendMemory:
		b.logger.Info("using in-memory credential store")
		return credential.NewMemoryStore(), "memory:client-config", nil
	case config.BackendDynamoDB:
		client, err := b.dynamoClient()
		if err != nil {
			return nil, "", err
		}
		b.logger.Info("using dynamodb credential store", slog.String("table", b.cfg.Storage.Table))
		ref := fmt.Sprintf("dynamodb://%s/%s", b.cfg.Storage.Table, credential.ClientConfigKey)
		return credential.NewDynamoStore(client, b.cfg.Storage.Table, encryptor, b.logger), ref, nil
	default:
		store := credential.NewFileStore(b.cfg.Drive.SessionPath, b.cfg.Drive.ClientConfigPath, encryptor, b.logger)
		return store, store.ClientConfigPath(), nil
	}
}

// locker picks the DynamoDB lease when a lock table is configured and an
// in-process lease otherwise.
func (b *builder) locker() (lease.Locker, error) {
	ttl := lease.WithTTL(lease.TTLFor(b.cfg.Auth.Timeout))
	if b.cfg.Storage.LockTable == "" {
		return lease.NewMemoryLocker(ttl), nil
	}
	client, err := b.dynamoClient()
	if err != nil {
		return nil, err
	}
	return lease.NewLockManager(client, b.cfg.Storage.LockTable, ttl), nil
}

// resolver reads secrets from the environment first. Outside DEV_MODE,
// names missing there are fetched from SSM Parameter Store.
func (b *builder) resolver() (secret.Resolver, error) {
	env := secret.NewEnvResolver()
	if b.cfg.DevMode {
		return env, nil
	}
	awsCfg, err := b.awsConfig()
	if err != nil {
		return nil, err
	}
	return secret.ChainResolver{env, secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))}, nil
}

func (b *builder) uploaders() adapter.UploaderProvider {
	if b.cfg.DevMode {
		b.logger.Info("using in-memory drive adapter", slog.Bool("dev_mode", true))
		return memory.NewMemoryAdapter()
	}
	return googledrive.NewProvider(b.cfg.Drive.FolderID)
}

// HandleRequest routes API Gateway requests.
func (a *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := strings.TrimPrefix(req.Path, "/api")
	a.Logger.Debug("request", slog.String("method", req.HTTPMethod), slog.String("path", path))

	switch {
	case path == "/webhook" && req.HTTPMethod == http.MethodPost:
		if a.Webhook == nil {
			return events.APIGatewayProxyResponse{StatusCode: http.StatusServiceUnavailable, Body: "Webhook not configured"}, nil
		}
		return a.Webhook.Handle(ctx, req)
	case path == "/healthz" && req.HTTPMethod == http.MethodGet:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", req.HTTPMethod, path),
	}, nil
}
