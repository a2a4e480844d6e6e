package enrich

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/cellarflow/internal/domain"
)

const (
	DefaultBatchSize = 100

	unknownName = "Unknown"
)

type ProductReader interface {
	BatchGet(ctx context.Context, productIDs []string) ([]domain.Product, error)
}

type Joiner struct {
	products    ProductReader
	batchSize   int
	concurrency int
}

func NewJoiner(products ProductReader, concurrency int) *Joiner {
	return &Joiner{
		products:    products,
		batchSize:   DefaultBatchSize,
		concurrency: concurrency,
	}
}

// Enrich attaches product name, price and image to every line, in input
// order. Products missing from the catalog get placeholder values; a failed
// batch fails the whole call.
func (j *Joiner) Enrich(ctx context.Context, lines []domain.CartLine) ([]domain.EnrichedLine, error) {
	batches := chunk(distinctProductIDs(lines), j.batchSize)

	results := make([][]domain.Product, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	if j.concurrency > 0 {
		g.SetLimit(j.concurrency)
	}
	for i, batch := range batches {
		g.Go(func() error {
			products, err := j.products.BatchGet(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch get %d products: %w", len(batch), err)
			}
			results[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Product)
	for _, products := range results {
		for _, p := range products {
			byID[p.ProductID] = p
		}
	}

	enriched := make([]domain.EnrichedLine, 0, len(lines))
	for _, line := range lines {
		out := domain.EnrichedLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			AddedAt:   line.AddedAt,
			Name:      unknownName,
		}
		if p, ok := byID[line.ProductID]; ok {
			out.Name = p.Name
			out.UnitPrice = p.UnitPrice
			out.ImageRef = p.ImageRef
		}
		enriched = append(enriched, out)
	}

	return enriched, nil
}

func distinctProductIDs(lines []domain.CartLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
