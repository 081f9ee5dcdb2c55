package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"offer-wizard/internal/domain"
)

const (
	pkPrefixSession = "SESSION#"
	skPrefixPage    = "PAGE#"
	ttlDuration     = 7 * 24 * time.Hour // sessions expire after a week
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore is the ConversationStore backing the Lambda front end. One
// item per (session, page); the question list is stored as a JSON document
// attribute and rewritten whole on every mutation. A session has a single
// writer, so read-modify-write is safe here.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamoStore creates a DynamoStore over the given table.
func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

func sessionPK(sessionID string) string {
	return pkPrefixSession + sessionID
}

func pageSK(page domain.Page) string {
	return skPrefixPage + string(page)
}

func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

func (s *DynamoStore) GetPage(ctx context.Context, sessionID string, page domain.Page) ([]domain.Question, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: pageSK(page)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetPage get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	return itemToQuestions(out.Item)
}

func (s *DynamoStore) ReplacePage(ctx context.Context, sessionID string, page domain.Page, questions []domain.Question) error {
	item, err := pageItem(sessionID, page, questions)
	if err != nil {
		return err
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("repository: ReplacePage: %w", err)
	}
	return nil
}

func (s *DynamoStore) AppendQuestion(ctx context.Context, sessionID string, page domain.Page, q domain.Question) (bool, error) {
	current, err := s.GetPage(ctx, sessionID, page)
	if err != nil {
		return false, err
	}
	next, appended, err := appendQuestion(current, q)
	if err != nil {
		return false, err
	}
	if !appended {
		return false, nil
	}
	if err := s.ReplacePage(ctx, sessionID, page, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *DynamoStore) UpdateResponse(ctx context.Context, sessionID string, page domain.Page, questionID string, response []string) error {
	current, err := s.GetPage(ctx, sessionID, page)
	if err != nil {
		return err
	}
	if err := updateResponse(current, questionID, response); err != nil {
		return err
	}
	return s.ReplacePage(ctx, sessionID, page, current)
}

func (s *DynamoStore) ClearPage(ctx context.Context, sessionID string, page domain.Page) error {
	if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: pageSK(page)},
		},
	}); err != nil {
		return fmt.Errorf("repository: ClearPage: %w", err)
	}
	return nil
}

// ClearSession queries every page item under the session key and deletes
// them one by one.
func (s *DynamoStore) ClearSession(ctx context.Context, sessionID string) error {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixPage},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: ClearSession query: %w", err)
	}
	for _, item := range out.Items {
		sk, err := strAttr(item, "SK")
		if err != nil {
			return fmt.Errorf("repository: ClearSession: %w", err)
		}
		if _, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
				"SK": &types.AttributeValueMemberS{Value: sk},
			},
		}); err != nil {
			return fmt.Errorf("repository: ClearSession delete %s: %w", sk, err)
		}
	}
	return nil
}

func pageItem(sessionID string, page domain.Page, questions []domain.Question) (map[string]types.AttributeValue, error) {
	doc, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("repository: marshal questions: %w", err)
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK":        &types.AttributeValueMemberS{Value: pageSK(page)},
		"questions": &types.AttributeValueMemberS{Value: string(doc)},
		"updatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
	}, nil
}

func itemToQuestions(item map[string]types.AttributeValue) ([]domain.Question, error) {
	doc, err := strAttr(item, "questions")
	if err != nil {
		return nil, fmt.Errorf("repository: read questions attribute: %w", err)
	}
	var qs []domain.Question
	if err := json.Unmarshal([]byte(doc), &qs); err != nil {
		return nil, fmt.Errorf("repository: unmarshal questions: %w", err)
	}
	return qs, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
