package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamodbAPI описывает минимальный интерфейс DynamoDB, нужный DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore хранит сессии в таблице DynamoDB. Атрибут ttl содержит момент истечения
// в секундах Unix и подходит для встроенного TTL таблицы; удаление по TTL ленивое,
// поэтому срок проверяется и при чтении.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore создаёт хранилище сессий поверх таблицы tableName.
func NewDynamoStore(api dynamodbAPI, tableName string, now func() time.Time) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("session: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("session: table name must not be empty")
	}
	if now == nil {
		now = time.Now
	}
	return &DynamoStore{api: api, tableName: tableName, now: now}, nil
}

// Get читает сессию по ключу.
func (d *DynamoStore) Get(ctx context.Context, key string) (*Session, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("session: dynamodb get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	expires, err := numberAttr(out.Item, "ttl")
	if err != nil {
		return nil, err
	}
	if d.now().Unix() >= expires {
		return nil, ErrNotFound
	}

	data, ok := out.Item["data"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("session: attribute \"data\" is not a string")
	}
	return Decode([]byte(data.Value))
}

// Set сохраняет сессию с новым сроком жизни.
func (d *DynamoStore) Set(ctx context.Context, key string, s *Session, ttl time.Duration) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"PK":   &types.AttributeValueMemberS{Value: key},
			"data": &types.AttributeValueMemberS{Value: string(data)},
			"ttl":  &types.AttributeValueMemberN{Value: strconv.FormatInt(d.now().Add(ttl).Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("session: dynamodb put item: %w", err)
	}
	return nil
}

func numberAttr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("session: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("session: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("session: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
