package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/joao-fontenele/cellarflow/internal/database"
	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

type productItem struct {
	PK            string    `dynamodbav:"PK"`
	SK            string    `dynamodbav:"SK"`
	GSI1PK        string    `dynamodbav:"GSI1PK"`
	GSI1SK        string    `dynamodbav:"GSI1SK"`
	GSI2PK        string    `dynamodbav:"GSI2PK"`
	GSI2SK        string    `dynamodbav:"GSI2SK"`
	ProductID     string    `dynamodbav:"productId"`
	Name          string    `dynamodbav:"name"`
	SearchName    string    `dynamodbav:"searchName"`
	Description   string    `dynamodbav:"description"`
	Category      string    `dynamodbav:"category"`
	UnitPrice     int64     `dynamodbav:"unitPrice"`
	ImageRef      string    `dynamodbav:"imageRef"`
	StockQuantity int       `dynamodbav:"stockQuantity"`
	InStock       bool      `dynamodbav:"inStock"`
	CreatedAt     time.Time `dynamodbav:"createdAt"`
	UpdatedAt     time.Time `dynamodbav:"updatedAt"`
}

func nameSortKey(name, productID string) string {
	return name + "#" + productID
}

func toProductItem(p domain.Product) productItem {
	return productItem{
		PK:            database.ProductPK(p.ProductID),
		SK:            database.ProductSK,
		GSI1PK:        database.ProductPartition,
		GSI1SK:        nameSortKey(p.Name, p.ProductID),
		GSI2PK:        database.CategoryPK(string(p.Category)),
		GSI2SK:        nameSortKey(p.Name, p.ProductID),
		ProductID:     p.ProductID,
		Name:          p.Name,
		SearchName:    strings.ToLower(p.Name),
		Description:   p.Description,
		Category:      string(p.Category),
		UnitPrice:     p.UnitPrice,
		ImageRef:      p.ImageRef,
		StockQuantity: p.StockQuantity,
		InStock:       p.StockQuantity > 0,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (i productItem) product() domain.Product {
	return domain.Product{
		ProductID:     i.ProductID,
		Name:          i.Name,
		Description:   i.Description,
		Category:      domain.Category(i.Category),
		UnitPrice:     i.UnitPrice,
		ImageRef:      i.ImageRef,
		StockQuantity: i.StockQuantity,
		InStock:       i.InStock,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

type DynamoRepository struct {
	client *dynamodb.Client
	table  string
}

func NewDynamoRepository(client *dynamodb.Client, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table}
}

func (r *DynamoRepository) Create(ctx context.Context, p *domain.Product) error {
	item, err := attributevalue.MarshalMap(toProductItem(*p))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if _, ok := database.IsConditionalCheckFailed(err); ok {
		return fmt.Errorf("%w: product %s already exists", domain.ErrConflict, p.ProductID)
	}
	if err != nil {
		return database.ClassifyDynamo(err)
	}
	p.InStock = p.StockQuantity > 0
	return nil
}

func (r *DynamoRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       database.ProductKey(productID),
	})
	if err != nil {
		return nil, database.ClassifyDynamo(err)
	}
	if len(out.Item) == 0 {
		return nil, domain.NotFound("product %s", productID)
	}

	var item productItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p := item.product()
	return &p, nil
}

// BatchGet resolves up to MaxBatchGet products, re-requesting keys the
// service left unprocessed.
func (r *DynamoRepository) BatchGet(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) > database.MaxBatchGet {
		return nil, fmt.Errorf("batch of %d keys exceeds limit of %d", len(productIDs), database.MaxBatchGet)
	}
	if len(productIDs) == 0 {
		return nil, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, database.ProductKey(id))
	}
	pending := map[string]types.KeysAndAttributes{r.table: {Keys: keys}}

	var products []domain.Product
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	err := backoff.Retry(func() error {
		out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		if err != nil {
			err = database.ClassifyDynamo(err)
			if domain.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		var items []productItem
		if err := attributevalue.UnmarshalListOfMaps(out.Responses[r.table], &items); err != nil {
			return backoff.Permanent(fmt.Errorf("unmarshal products: %w", err))
		}
		for _, item := range items {
			products = append(products, item.product())
		}

		if len(out.UnprocessedKeys) == 0 {
			return nil
		}
		pending = out.UnprocessedKeys
		return fmt.Errorf("%w: %d unprocessed keys", domain.ErrTransient, len(pending[r.table].Keys))
	}, b)
	if err != nil {
		return nil, err
	}

	return products, nil
}

// List queries the name index, or the category index when filter names a
// category. A name query is applied as a filter expression, so a page may
// hold fewer than req.Limit products while more remain.
func (r *DynamoRepository) List(ctx context.Context, filter Filter, req pagination.Request) ([]domain.Product, pagination.Key, error) {
	index, partitionAttr, sortAttr, partition := database.IndexGSI1, database.AttrGSI1PK, database.AttrGSI1SK, database.ProductPartition
	if filter.Category != "" {
		index, partitionAttr, sortAttr, partition = database.IndexGSI2, database.AttrGSI2PK, database.AttrGSI2SK, database.CategoryPK(filter.Category)
	}
	if err := database.CheckKey(req.After, database.AttrPK, database.AttrSK, partitionAttr, sortAttr); err != nil {
		return nil, nil, err
	}

	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key(partitionAttr).Equal(expression.Value(partition)))
	if filter.Query != "" {
		builder = builder.WithFilter(expression.Name("searchName").Contains(strings.ToLower(filter.Query)))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build query: %w", err)
	}

	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(int32(req.Limit)),
		ExclusiveStartKey:         database.AttributesFromKey(req.After),
	})
	if err != nil {
		return nil, nil, database.ClassifyDynamo(err)
	}

	var items []productItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, nil, fmt.Errorf("unmarshal products: %w", err)
	}
	products := make([]domain.Product, 0, len(items))
	for _, item := range items {
		products = append(products, item.product())
	}

	return products, database.KeyFromAttributes(out.LastEvaluatedKey), nil
}

// Update writes only the fields present in patch. Index keys derived from
// name or category follow them.
func (r *DynamoRepository) Update(ctx context.Context, productID string, patch domain.ProductPatch) (*domain.Product, error) {
	now := time.Now().UTC()
	update := expression.Set(expression.Name("updatedAt"), expression.Value(now))
	if patch.Name != nil {
		sortKey := nameSortKey(*patch.Name, productID)
		update = update.
			Set(expression.Name("name"), expression.Value(*patch.Name)).
			Set(expression.Name("searchName"), expression.Value(strings.ToLower(*patch.Name))).
			Set(expression.Name(database.AttrGSI1SK), expression.Value(sortKey)).
			Set(expression.Name(database.AttrGSI2SK), expression.Value(sortKey))
	}
	if patch.Description != nil {
		update = update.Set(expression.Name("description"), expression.Value(*patch.Description))
	}
	if patch.Category != nil {
		update = update.
			Set(expression.Name("category"), expression.Value(string(*patch.Category))).
			Set(expression.Name(database.AttrGSI2PK), expression.Value(database.CategoryPK(string(*patch.Category))))
	}
	if patch.UnitPrice != nil {
		update = update.Set(expression.Name("unitPrice"), expression.Value(*patch.UnitPrice))
	}
	if patch.ImageRef != nil {
		update = update.Set(expression.Name("imageRef"), expression.Value(*patch.ImageRef))
	}
	if patch.StockQuantity != nil {
		update = update.
			Set(expression.Name("stockQuantity"), expression.Value(*patch.StockQuantity)).
			Set(expression.Name("inStock"), expression.Value(*patch.StockQuantity > 0))
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(database.AttrPK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       database.ProductKey(productID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if _, ok := database.IsConditionalCheckFailed(err); ok {
		return nil, domain.NotFound("product %s", productID)
	}
	if err != nil {
		return nil, database.ClassifyDynamo(err)
	}

	var item productItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &item); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p := item.product()
	return &p, nil
}

func (r *DynamoRepository) Delete(ctx context.Context, productID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 database.ProductKey(productID),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if _, ok := database.IsConditionalCheckFailed(err); ok {
		return domain.NotFound("product %s", productID)
	}
	return database.ClassifyDynamo(err)
}
