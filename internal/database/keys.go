package database

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/joao-fontenele/cellarflow/internal/domain"
	"github.com/joao-fontenele/cellarflow/internal/pagination"
)

const (
	ProductPartition = "PRODUCT"
	OrderPartition   = "ORDER"
	ProductSK        = "META"
	OwnerCartSK      = "OWNER_CART"
)

func ProductPK(productID string) string { return "PRODUCT#" + productID }
func CategoryPK(category string) string { return "CATEGORY#" + category }
func OwnerPK(ownerID string) string { return "USER#" + ownerID }
func CartSK(cartID string) string { return "CART#" + cartID }
func OrderPK(orderID string) string { return "ORDER#" + orderID }
func OwnerOrdersPK(ownerID string) string { return "USER_ORDERS#" + ownerID }
func OrderSortKey(createdAt time.Time, orderID string) string {
	return createdAt.UTC().Format(time.RFC3339Nano) + "#" + orderID
}

const CartSKPrefix = "CART#"

func ProductKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: StringAttr(ProductPK(productID)),
		AttrSK: StringAttr(ProductSK),
	}
}

func OrderKey(orderID string) map[string]types.AttributeValue {
	pk := OrderPK(orderID)
	return map[string]types.AttributeValue{
		AttrPK: StringAttr(pk),
		AttrSK: StringAttr(pk),
	}
}

// CheckKey verifies that a decoded cursor carries exactly the attributes of
// the index being queried.
func CheckKey(key pagination.Key, attrs ...string) error {
	if key == nil {
		return nil
	}
	if len(key) != len(attrs) {
		return domain.InvalidInput("malformed nextToken")
	}
	for _, attr := range attrs {
		if _, ok := key[attr]; !ok {
			return domain.InvalidInput("malformed nextToken")
		}
	}
	return nil
}
