package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

// Single-table layout shared by every DynamoDB repository.
const (
	AttrPK     = "PK"
	AttrSK     = "SK"
	AttrGSI1PK = "GSI1PK"
	AttrGSI1SK = "GSI1SK"
	AttrGSI2PK = "GSI2PK"
	AttrGSI2SK = "GSI2SK"
	AttrTTL    = "expiresAt"

	IndexGSI1 = "GSI1"
	IndexGSI2 = "GSI2"

	// MaxBatchGet is the provider limit on keys per BatchGetItem call.
	MaxBatchGet = 100
)

// NewDynamoClient builds a client for region. A non-empty endpoint points the
// client at a local emulator with static credentials.
func NewDynamoClient(ctx context.Context, region, endpoint string, httpClient *http.Client) (*dynamodb.Client, error) {
	cfg, err := loadAWSConfig(ctx, region, endpoint, httpClient)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func loadAWSConfig(ctx context.Context, region, endpoint string, httpClient *http.Client) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if httpClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(httpClient))
	}
	if endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// ClassifyDynamo maps SDK failures onto the domain error kinds. Conditional
// check failures are left to the caller since their meaning depends on the
// condition.
func ClassifyDynamo(err error) error {
	if err == nil {
		return nil
	}

	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		txConflict *types.TransactionConflictException
		canceled   *types.TransactionCanceledException
		apiErr     smithy.APIError
	)
	switch {
	case errors.As(err, &throughput), errors.As(err, &limit):
		return fmt.Errorf("%w: %w: %w", domain.ErrTransient, domain.ErrNotApplied, err)
	case errors.As(err, &txConflict):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	case errors.As(err, &canceled):
		return classifyCancellation(canceled, err)
	case errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException":
		return fmt.Errorf("%w: %w: %w", domain.ErrTransient, domain.ErrNotApplied, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return err
}

// classifyCancellation inspects per-item reasons of a cancelled transaction.
// A failed condition wins over throttling since it will not pass on retry.
func classifyCancellation(canceled *types.TransactionCanceledException, err error) error {
	throttled := false
	for _, reason := range canceled.CancellationReasons {
		switch aws.ToString(reason.Code) {
		case "ConditionalCheckFailed", "TransactionConflict":
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		case "ThrottlingError", "ProvisionedThroughputExceeded", "RequestLimitExceeded":
			throttled = true
		}
	}
	if throttled {
		return fmt.Errorf("%w: %w: %w", domain.ErrTransient, domain.ErrNotApplied, err)
	}
	return err
}

func IsConditionalCheckFailed(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}

func StringAttr(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

// KeyFromAttributes converts a LastEvaluatedKey into a pagination key. Only
// string attributes are kept; every key attribute in the table is a string.
func KeyFromAttributes(item map[string]types.AttributeValue) pagination.Key {
	if len(item) == 0 {
		return nil
	}
	key := make(pagination.Key, len(item))
	for name, value := range item {
		if s, ok := value.(*types.AttributeValueMemberS); ok {
			key[name] = s.Value
		}
	}
	return key
}

func AttributesFromKey(key pagination.Key) map[string]types.AttributeValue {
	if len(key) == 0 {
		return nil
	}
	item := make(map[string]types.AttributeValue, len(key))
	for name, value := range key {
		item[name] = StringAttr(value)
	}
	return item
}

// EnsureTable creates the single table with its two secondary indexes and
// enables TTL on carts. It is a no-op for an existing table.
func EnsureTable(ctx context.Context, client *dynamodb.Client, table string) error {
	stringAttr := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	keySchema := func(hash, rangeKey string) []types.KeySchemaElement {
		return []types.KeySchemaElement{
			{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(rangeKey), KeyType: types.KeyTypeRange},
		}
	}

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			stringAttr(AttrPK), stringAttr(AttrSK),
			stringAttr(AttrGSI1PK), stringAttr(AttrGSI1SK),
			stringAttr(AttrGSI2PK), stringAttr(AttrGSI2SK),
		},
		KeySchema: keySchema(AttrPK, AttrSK),
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName:  aws.String(IndexGSI1),
				KeySchema:  keySchema(AttrGSI1PK, AttrGSI1SK),
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
			{
				IndexName:  aws.String(IndexGSI2),
				KeySchema:  keySchema(AttrGSI2PK, AttrGSI2SK),
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
	})
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", table, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", table, err)
	}

	_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(table),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(AttrTTL),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		// TTL already enabled surfaces as a validation error.
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" {
			return nil
		}
		return fmt.Errorf("enable ttl on %s: %w", table, err)
	}

	return nil
}
