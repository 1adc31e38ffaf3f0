package catalog

import (
	"sort"

	"shelfstock/pkg/domain"
)

// Aggregate folds raw records into one product per (normalized name, category)
// group. Price is the arithmetic mean of member prices, counters are summed.
// The result is sorted by normalized name, then category, so repeated calls
// over the same snapshot yield identical output.
func Aggregate(records []domain.Record) []domain.AggregatedProduct {
	type group struct {
		product  domain.AggregatedProduct
		priceSum float64
	}
	index := make(map[domain.GroupKey]*group)
	order := make([]domain.GroupKey, 0, len(records))
	for _, rec := range records {
		key := rec.Key()
		g, ok := index[key]
		if !ok {
			g = &group{product: domain.AggregatedProduct{
				Name:     key.NormalizedName,
				Category: rec.Category,
			}}
			index[key] = g
			order = append(order, key)
		}
		g.priceSum += rec.Price
		g.product.Inventory += rec.Inventory
		g.product.Sold += rec.Sold
		g.product.RecordCount++
	}

	out := make([]domain.AggregatedProduct, 0, len(order))
	for _, key := range order {
		g := index[key]
		g.product.Price = g.priceSum / float64(g.product.RecordCount)
		out = append(out, g.product)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Categories returns the distinct record categories in sorted order.
func Categories(records []domain.Record) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range records {
		if _, ok := seen[rec.Category]; ok {
			continue
		}
		seen[rec.Category] = struct{}{}
		out = append(out, rec.Category)
	}
	sort.Strings(out)
	return out
}
