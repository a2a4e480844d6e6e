package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/domain"
)

type stockItem struct {
	StockQuantity int  `dynamodbav:"stockQuantity"`
	InStock       bool `dynamodbav:"inStock"`
}

type DynamoRepository struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoRepository(client *dynamodb.Client, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table}
}

func (r *DynamoRepository) ConditionalDecrement(ctx context.Context, productID string, quantity int) (domain.StockLevel, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 database.ProductKey(productID),
		UpdateExpression:    aws.String("SET stockQuantity = stockQuantity - :qty, updatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK) AND stockQuantity >= :qty"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(quantity)},
			":now": database.StringAttr(time.Now().UTC().Format(time.RFC3339Nano)),
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := database.IsConditionalCheckFailed(err); ok {
		if len(ccf.Item) == 0 {
			return domain.StockLevel{}, domain.NotFound("product %s", productID)
		}
		return domain.StockLevel{}, fmt.Errorf("%w: product %s", domain.ErrInsufficientStock, productID)
	}
	if err != nil {
		return domain.StockLevel{}, database.ClassifyDynamo(err)
	}

	var item stockItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return domain.StockLevel{}, fmt.Errorf("unmarshal stock: %w", err)
	}

	return domain.StockLevel{ProductID: productID, RemainingStock: item.StockQuantity, InStock: item.InStock}, nil
}

func (r *DynamoRepository) MarkOutOfStock(ctx context.Context, productID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 database.ProductKey(productID),
		UpdateExpression:    aws.String("SET inStock = :false, updatedAt = :now"),
		ConditionExpression: aws.String("stockQuantity = :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":now":   database.StringAttr(time.Now().UTC().Format(time.RFC3339Nano)),
		},
	})
	// Restocked in the meantime; the flag is already right.
	if _, ok := database.IsConditionalCheckFailed(err); ok {
		return nil
	}
	return database.ClassifyDynamo(err)
}

func (r *DynamoRepository) GetStock(ctx context.Context, productID string) (domain.StockLevel, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.table),
		Key:                  database.ProductKey(productID),
		ProjectionExpression: aws.String("stockQuantity, inStock"),
		ConsistentRead:       aws.Bool(true),
	})
	if err != nil {
		return domain.StockLevel{}, database.ClassifyDynamo(err)
	}
	if len(out.Item) == 0 {
		return domain.StockLevel{}, domain.NotFound("product %s", productID)
	}

	var item stockItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.StockLevel{}, fmt.Errorf("unmarshal stock: %w", err)
	}

	return domain.StockLevel{ProductID: productID, RemainingStock: item.StockQuantity, InStock: item.InStock}, nil
}
