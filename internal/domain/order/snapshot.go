package order

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// itemsFromMetadata reconstructs line items from the untyped metadata
// document of a legacy order. The derived view must match the shape of
// real snapshot rows; lines with a non-positive quantity are dropped here
// (and only here — persisted snapshots keep whatever was placed).
func itemsFromMetadata(metadata map[string]any) []ItemSnapshot {
	raw, ok := metadata["items"].([]any)
	if !ok {
		return nil
	}

	items := make([]ItemSnapshot, 0, len(raw))
	for _, entry := range raw {
		line, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		quantity := intField(line, "quantity")
		if quantity <= 0 {
			continue
		}

		item := ItemSnapshot{
			Label:     stringField(line, "label"),
			Quantity:  quantity,
			UnitPrice: decimalField(line, "unitPrice"),
			LineTotal: decimalField(line, "lineTotal"),
			Side:      stringField(line, "side"),
			Type:      stringField(line, "type"),
		}
		if d, ok := optionalDecimalField(line, "originalUnitPrice"); ok {
			item.OriginalUnitPrice = &d
		}
		if d, ok := optionalDecimalField(line, "discountValue"); ok {
			item.DiscountValue = &d
		}
		items = append(items, item)
	}
	return items
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	}
	return 0
}

func decimalField(m map[string]any, key string) decimal.Decimal {
	d, _ := optionalDecimalField(m, key)
	return d
}

func optionalDecimalField(m map[string]any, key string) (decimal.Decimal, bool) {
	switch v := m[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case decimal.Decimal:
		return v, true
	}
	return decimal.Decimal{}, false
}
