package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mortgage-criteria-chat/internal/domain"
)

const (
	skPrefixExchange = "EXCH#"
	ttlDuration      = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client archives settled chat exchanges to a DynamoDB table. Items are only
// ever written; sessions are never rebuilt from them.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the partition key for a chat session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// exchangeSK orders exchanges chronologically within a session.
func exchangeSK(ts time.Time, exchangeID string) string {
	return skPrefixExchange + ts.UTC().Format(time.RFC3339Nano) + "#" + exchangeID
}

// RecordExchange writes one exchange item with a 30-day TTL.
func (c *Client) RecordExchange(ctx context.Context, ex domain.Exchange) error {
	if strings.TrimSpace(ex.SessionID) == "" || strings.TrimSpace(ex.ID) == "" {
		return errors.New("repository: RecordExchange: session and exchange IDs are required")
	}
	if ex.StartedAt.IsZero() {
		ex.StartedAt = c.now()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                exchangeItem(ex, c.now().Add(ttlDuration).Unix()),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordExchange: %w", err)
	}
	return nil
}

func exchangeItem(ex domain.Exchange, ttl int64) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":              &types.AttributeValueMemberS{Value: sessionPK(ex.SessionID)},
		"SK":              &types.AttributeValueMemberS{Value: exchangeSK(ex.StartedAt, ex.ID)},
		"sessionId":       &types.AttributeValueMemberS{Value: ex.SessionID},
		"exchangeId":      &types.AttributeValueMemberS{Value: ex.ID},
		"query":           &types.AttributeValueMemberS{Value: ex.Query},
		"reply":           &types.AttributeValueMemberS{Value: ex.Reply},
		"outcome":         &types.AttributeValueMemberS{Value: string(ex.Outcome)},
		"numResults":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ex.ResultCount)},
		"resultsReturned": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ex.ResultsReturned)},
		"durationMs":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ex.Duration.Milliseconds())},
		"createdAt":       &types.AttributeValueMemberS{Value: ex.StartedAt.UTC().Format(time.RFC3339)},
		"ttl":             &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
	}
	if ex.LenderFilter != "" {
		item["lenderFilter"] = &types.AttributeValueMemberS{Value: ex.LenderFilter}
	}
	return item
}
