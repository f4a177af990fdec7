package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/abearman/mindful-sub000/models"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoPreferenceStore keeps one preferences item per user in a single
// table keyed by PK/SK.
type DynamoPreferenceStore struct {
	client    DynamoClient
	tableName string
}

func NewDynamoPreferenceStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoPreferenceStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoPreferenceStore{client: client, tableName: tableName}, nil
}

func NewWithClient(client DynamoClient, tableName string) *DynamoPreferenceStore {
	return &DynamoPreferenceStore{client: client, tableName: tableName}
}

// DynamoClient is the subset of the DynamoDB API the store calls.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

func (dynamoStore *DynamoPreferenceStore) GetStorageType(ctx context.Context, userId string) (models.StorageType, error) {
	dp, err := getItem[dynamoPreferences](dynamoStore, ctx, userPK(userId), preferencesSK, true)
	if err != nil {
		return "", err
	}
	return models.ParseStorageType(dp.StorageType)
}

func (dynamoStore *DynamoPreferenceStore) SetStorageType(ctx context.Context, userId string, storageType models.StorageType) error {
	dp := dynamoPreferences{
		PK:          userPK(userId),
		SK:          preferencesSK,
		UserId:      userId,
		StorageType: storageType.String(),
		Updated:     time.Now().Unix(),
	}
	return putItem(dynamoStore, ctx, dp)
}

func (dynamoStore *DynamoPreferenceStore) DeleteUser(ctx context.Context, userId string) error {
	return deleteItem(dynamoStore, ctx, userPK(userId), preferencesSK)
}
