package cart

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
)

type cartItem struct {
	PK        string            `dynamodbav:"PK"`
	SK        string            `dynamodbav:"SK"`
	OwnerID   string            `dynamodbav:"ownerId"`
	CartID    string            `dynamodbav:"cartId"`
	Lines     []domain.CartLine `dynamodbav:"lines"`
	CreatedAt time.Time         `dynamodbav:"createdAt"`
	UpdatedAt time.Time         `dynamodbav:"updatedAt"`
	ExpiresAt int64             `dynamodbav:"expiresAt"`
	Version   int64             `dynamodbav:"version"`
}

// ownerMarker guards the one-live-cart-per-owner rule; cart items themselves
// are keyed by cart id.
type ownerMarker struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	CartID    string `dynamodbav:"cartId"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

type DynamoRepository struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoRepository(client *dynamodb.Client, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table}
}

func (r *DynamoRepository) FindByOwner(ctx context.Context, ownerID string, now time.Time) (*domain.Cart, error) {
	keyCond := expression.Key(database.AttrPK).Equal(expression.Value(database.OwnerPK(ownerID))).
		And(expression.Key(database.AttrSK).BeginsWith(database.CartSKPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build cart query: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})
	if err != nil {
		return nil, database.ClassifyDynamo(err)
	}

	// TTL deletion lags behind expiry, so expired items can still be returned.
	for _, raw := range out.Items {
		var item cartItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal cart: %w", err)
		}
		if item.ExpiresAt <= now.Unix() {
			continue
		}
		return &domain.Cart{
			OwnerID:   item.OwnerID,
			CartID:    item.CartID,
			Lines:     item.Lines,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
			ExpiresAt: item.ExpiresAt,
			Version:   item.Version,
		}, nil
	}
	return nil, nil
}

func (r *DynamoRepository) Save(ctx context.Context, cart *domain.Cart, now time.Time) error {
	item, err := attributevalue.MarshalMap(cartItem{
		PK:        database.OwnerPK(cart.OwnerID),
		SK:        database.CartSK(cart.CartID),
		OwnerID:   cart.OwnerID,
		CartID:    cart.CartID,
		Lines:     cart.Lines,
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
		ExpiresAt: cart.ExpiresAt,
		Version:   cart.Version + 1,
	})
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	marker, err := attributevalue.MarshalMap(ownerMarker{
		PK:        database.OwnerPK(cart.OwnerID),
		SK:        database.OwnerCartSK,
		CartID:    cart.CartID,
		ExpiresAt: cart.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal owner marker: %w", err)
	}

	var cartCond, markerCond expression.ConditionBuilder
	if cart.Persisted() {
		cartCond = expression.Name("version").Equal(expression.Value(cart.Version))
		markerCond = expression.Name("cartId").Equal(expression.Value(cart.CartID))
	} else {
		cartCond = expression.AttributeNotExists(expression.Name(database.AttrPK))
		markerCond = expression.AttributeNotExists(expression.Name(database.AttrPK)).
			Or(expression.Name(database.AttrTTL).LessThanEqual(expression.Value(now.Unix())))
	}

	cartExpr, err := expression.NewBuilder().WithCondition(cartCond).Build()
	if err != nil {
		return fmt.Errorf("build cart condition: %w", err)
	}
	markerExpr, err := expression.NewBuilder().WithCondition(markerCond).Build()
	if err != nil {
		return fmt.Errorf("build owner condition: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                 aws.String(r.table),
				Item:                      item,
				ConditionExpression:       cartExpr.Condition(),
				ExpressionAttributeNames:  cartExpr.Names(),
				ExpressionAttributeValues: cartExpr.Values(),
			}},
			{Put: &types.Put{
				TableName:                 aws.String(r.table),
				Item:                      marker,
				ConditionExpression:       markerExpr.Condition(),
				ExpressionAttributeNames:  markerExpr.Names(),
				ExpressionAttributeValues: markerExpr.Values(),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("save cart for owner %s: %w", cart.OwnerID, database.ClassifyDynamo(err))
	}

	cart.Version++
	return nil
}

func (r *DynamoRepository) Delete(ctx context.Context, cart *domain.Cart) error {
	ownerPK := database.OwnerPK(cart.OwnerID)
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName: aws.String(r.table),
				Key: map[string]types.AttributeValue{
					database.AttrPK: database.StringAttr(ownerPK),
					database.AttrSK: database.StringAttr(database.CartSK(cart.CartID)),
				},
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.table),
				Key: map[string]types.AttributeValue{
					database.AttrPK: database.StringAttr(ownerPK),
					database.AttrSK: database.StringAttr(database.OwnerCartSK),
				},
				ConditionExpression: aws.String("attribute_not_exists(cartId) OR cartId = :cartId"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":cartId": database.StringAttr(cart.CartID),
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("delete cart %s: %w", cart.CartID, database.ClassifyDynamo(err))
	}
	return nil
}
