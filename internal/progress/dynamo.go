package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// Single-table key layout: one partition per reader, profile under a fixed
// sort key, one item per finished story.
const (
	pkPrefix = "READER#"
	skMeta   = "META"
	skStory  = "STORY#"
)

// DynamoStore implements Store on a DynamoDB single table. Progress is
// long-lived, so items carry no TTL.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}
}

func readerPK(userID string) string {
	return pkPrefix + userID
}

func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, data interface{}) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

func (s *DynamoStore) getItem(ctx context.Context, pk, sk string, out interface{}) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

func (s *DynamoStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	found, err := s.getItem(ctx, readerPK(userID), skMeta, &profile)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}
	if !found {
		return nil, nil
	}

	profile.UserID = userID
	return &profile, nil
}

func (s *DynamoStore) RecordStory(ctx context.Context, userID string, rec *StoryRecord) (*Profile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &Profile{UserID: userID}
	}

	now := time.Now()
	if rec.CompletedAt == 0 {
		rec.CompletedAt = now.Unix()
	}
	applyStory(profile, rec, now)

	if err := s.putItem(ctx, readerPK(userID), skStory+rec.SessionID, rec); err != nil {
		return nil, fmt.Errorf("put story %s/%s: %w", userID, rec.SessionID, err)
	}
	if err := s.putItem(ctx, readerPK(userID), skMeta, profile); err != nil {
		return nil, fmt.Errorf("put profile %s: %w", userID, err)
	}

	log.Debug().
		Str("userId", userID).
		Str("sessionId", rec.SessionID).
		Int("storiesCompleted", profile.StoriesCompleted).
		Int("level", profile.Level).
		Msg("Reader progress persisted")
	return profile, nil
}

func (s *DynamoStore) ListStories(ctx context.Context, userID string) ([]*StoryRecord, error) {
	pk := readerPK(userID)

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skStory},
		},
	}

	var stories []*StoryRecord

	// DynamoDB returns up to 1MB per Query call; paginate.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list stories for %s: %w", userID, err)
		}

		for _, item := range result.Items {
			var rec StoryRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				log.Warn().Err(err).Str("userId", userID).Msg("Failed to unmarshal story record, skipping")
				continue
			}
			if skAttr, ok := item["SK"].(*types.AttributeValueMemberS); ok {
				rec.SessionID = strings.TrimPrefix(skAttr.Value, skStory)
			}
			stories = append(stories, &rec)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return stories, nil
}
