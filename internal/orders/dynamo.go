package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

type orderItem struct {
	PK             string                 `dynamodbav:"PK"`
	SK             string                 `dynamodbav:"SK"`
	GSI1PK         string                 `dynamodbav:"GSI1PK"`
	GSI1SK         string                 `dynamodbav:"GSI1SK"`
	GSI2PK         string                 `dynamodbav:"GSI2PK"`
	GSI2SK         string                 `dynamodbav:"GSI2SK"`
	OrderID        string                 `dynamodbav:"orderId"`
	OwnerID        string                 `dynamodbav:"ownerId"`
	Status         string                 `dynamodbav:"status"`
	TotalAmount    int64                  `dynamodbav:"totalAmount"`
	Currency       string                 `dynamodbav:"currency"`
	CustomerEmail  string                 `dynamodbav:"customerEmail,omitempty"`
	Lines          []domain.EnrichedLine  `dynamodbav:"lines"`
	Shipping       domain.ShippingDetails `dynamodbav:"shippingDetails"`
	IdempotencyKey string                 `dynamodbav:"idempotencyKey"`
	CreatedAt      time.Time              `dynamodbav:"createdAt"`
	UpdatedAt      time.Time              `dynamodbav:"updatedAt"`
}

func toOrderItem(o *domain.Order) orderItem {
	pk := database.OrderPK(o.OrderID)
	sortKey := database.OrderSortKey(o.CreatedAt, o.OrderID)
	return orderItem{
		PK:             pk,
		SK:             pk,
		GSI1PK:         database.OrderPartition,
		GSI1SK:         sortKey,
		GSI2PK:         database.OwnerOrdersPK(o.OwnerID),
		GSI2SK:         sortKey,
		OrderID:        o.OrderID,
		OwnerID:        o.OwnerID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		CustomerEmail:  o.CustomerEmail,
		Lines:          o.Lines,
		Shipping:       o.Shipping,
		IdempotencyKey: o.IdempotencyKey,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (i orderItem) order() *domain.Order {
	return &domain.Order{
		OrderID:        i.OrderID,
		OwnerID:        i.OwnerID,
		Status:         domain.OrderStatus(i.Status),
		TotalAmount:    i.TotalAmount,
		Currency:       i.Currency,
		CustomerEmail:  i.CustomerEmail,
		Lines:          i.Lines,
		Shipping:       i.Shipping,
		IdempotencyKey: i.IdempotencyKey,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

func unmarshalOrder(item map[string]types.AttributeValue) (*domain.Order, error) {
	var oi orderItem
	if err := attributevalue.UnmarshalMap(item, &oi); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return oi.order(), nil
}

type DynamoOrderRepository struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoOrderRepository(client *dynamodb.Client, table string) *DynamoOrderRepository {
	return &DynamoOrderRepository{client: client, table: table}
}

func (r *DynamoOrderRepository) CreateIfAbsent(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	item, err := attributevalue.MarshalMap(toOrderItem(order))
	if err != nil {
		return nil, false, fmt.Errorf("marshal order: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                           aws.String(r.table),
		Item:                                item,
		ConditionExpression:                 aws.String("attribute_not_exists(PK)"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := database.IsConditionalCheckFailed(err); ok {
		if len(ccf.Item) == 0 {
			existing, err := r.GetByID(ctx, order.OrderID)
			return existing, false, err
		}
		existing, err := unmarshalOrder(ccf.Item)
		return existing, false, err
	}
	if err != nil {
		return nil, false, database.ClassifyDynamo(err)
	}
	return order, true, nil
}

func (r *DynamoOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            database.OrderKey(orderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, database.ClassifyDynamo(err)
	}
	if len(out.Item) == 0 {
		return nil, domain.NotFound("order %s", orderID)
	}
	return unmarshalOrder(out.Item)
}

func (r *DynamoOrderRepository) List(ctx context.Context, ownerID string, req pagination.Request) ([]domain.Order, pagination.Key, error) {
	index, partitionAttr, sortAttr, partition := database.IndexGSI1, database.AttrGSI1PK, database.AttrGSI1SK, database.OrderPartition
	if ownerID != "" {
		index, partitionAttr, sortAttr, partition = database.IndexGSI2, database.AttrGSI2PK, database.AttrGSI2SK, database.OwnerOrdersPK(ownerID)
	}
	if err := database.CheckKey(req.After, database.AttrPK, database.AttrSK, partitionAttr, sortAttr); err != nil {
		return nil, nil, err
	}

	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(partitionAttr).Equal(expression.Value(partition))).
		Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build query: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(req.Limit)),
		ExclusiveStartKey:         database.AttributesFromKey(req.After),
	})
	if err != nil {
		return nil, nil, database.ClassifyDynamo(err)
	}

	var items []orderItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	orders := make([]domain.Order, 0, len(items))
	for _, item := range items {
		orders = append(orders, *item.order())
	}

	return orders, database.KeyFromAttributes(out.LastEvaluatedKey), nil
}

func (r *DynamoOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !domain.OrderStatusPending.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: cannot move order to %s", domain.ErrInvalidTransition, status)
	}

	expr, err := expression.NewBuilder().
		WithUpdate(expression.
			Set(expression.Name("status"), expression.Value(string(status))).
			Set(expression.Name("updatedAt"), expression.Value(time.Now().UTC()))).
		WithCondition(expression.AttributeExists(expression.Name(database.AttrPK)).
			And(expression.Name("status").Equal(expression.Value(string(domain.OrderStatusPending))))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.table),
		Key:                                 database.OrderKey(orderID),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := database.IsConditionalCheckFailed(err); ok {
		if len(ccf.Item) == 0 {
			return nil, domain.NotFound("order %s", orderID)
		}
		current, err := unmarshalOrder(ccf.Item)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, orderID, current.Status)
	}
	if err != nil {
		return nil, database.ClassifyDynamo(err)
	}
	return unmarshalOrder(out.Attributes)
}
