package credential

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/habat-tech/todrive/internal/crypto"
	"github.com/habat-tech/todrive/internal/model"
)

// Item keys within the credentials table.
const (
	SessionKey      = "session"
	ClientConfigKey = "client-config"
)

// DynamoAPI is the subset of *dynamodb.Client methods used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type clientConfigItem struct {
	CredentialID string    `dynamodbav:"credential_id"`
	Payload      []byte    `dynamodbav:"payload"`
	UpdatedAt    time.Time `dynamodbav:"updated_at"`
}

// DynamoStore keeps both credential items in a DynamoDB table keyed by
// credential_id. Lambda deployments use it since they have no durable disk.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	encryptor crypto.Encryptor // optional; seals the token fields
	logger    *slog.Logger
}

// NewDynamoStore creates a DynamoStore.
func NewDynamoStore(client DynamoAPI, tableName string, encryptor crypto.Encryptor, logger *slog.Logger) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		encryptor: encryptor,
		logger:    logger,
	}
}

func (s *DynamoStore) getItem(ctx context.Context, key string) (map[string]types.AttributeValue, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"credential_id": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	return out.Item, nil
}

func (s *DynamoStore) putItem(ctx context.Context, item map[string]types.AttributeValue) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save item to DynamoDB: %w", err)
	}
	return nil
}

// Load returns the session record, or (nil, nil) if absent or undecodable.
func (s *DynamoStore) Load(ctx context.Context) (*model.CredentialRecord, error) {
	item, err := s.getItem(ctx, SessionKey)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	var rec model.CredentialRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		s.logger.Warn("ignoring undecodable session item", slog.String("error", err.Error()))
		return nil, nil
	}

	if s.encryptor != nil {
		if rec.AccessToken, err = s.open(ctx, rec.AccessToken); err != nil {
			return nil, err
		}
		if rec.RefreshToken, err = s.open(ctx, rec.RefreshToken); err != nil {
			return nil, err
		}
	}

	if !usable(&rec) {
		return nil, nil
	}
	return &rec, nil
}

// Save overwrites the session item.
func (s *DynamoStore) Save(ctx context.Context, rec *model.CredentialRecord) error {
	stored := *rec
	stored.CredentialID = SessionKey

	if s.encryptor != nil {
		var err error
		if stored.AccessToken, err = s.seal(ctx, rec.AccessToken); err != nil {
			return err
		}
		if stored.RefreshToken, err = s.seal(ctx, rec.RefreshToken); err != nil {
			return err
		}
	}

	item, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal credential record: %w", err)
	}
	return s.putItem(ctx, item)
}

// PutClientConfig overwrites the client configuration item.
func (s *DynamoStore) PutClientConfig(ctx context.Context, data []byte) error {
	item, err := attributevalue.MarshalMap(clientConfigItem{
		CredentialID: ClientConfigKey,
		Payload:      data,
		UpdatedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	return s.putItem(ctx, item)
}

// ClientConfig returns the stored client configuration or ErrNoClientConfig.
func (s *DynamoStore) ClientConfig(ctx context.Context) ([]byte, error) {
	item, err := s.getItem(ctx, ClientConfigKey)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNoClientConfig
	}

	var cc clientConfigItem
	if err := attributevalue.UnmarshalMap(item, &cc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client config: %w", err)
	}
	if len(cc.Payload) == 0 {
		return nil, ErrNoClientConfig
	}
	return cc.Payload, nil
}

func (s *DynamoStore) seal(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	sealed, err := s.encryptor.Encrypt(ctx, []byte(token))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *DynamoStore) open(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}
	plain, err := s.encryptor.Decrypt(ctx, decoded)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return string(plain), nil
}
