package domain

import "github.com/shopspring/decimal"

// AggregatedLine groups every LineEntry sharing a name.
type AggregatedLine struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is the aggregated view of a cart.
type Order struct {
	Lines []AggregatedLine `json:"lines"`
	Total decimal.Decimal  `json:"total"`
}

func (o Order) IsEmpty() bool {
	return len(o.Lines) == 0
}

// Aggregate groups entries by exact name, keeping the order in which names first appear.
// Subtotals sum the captured entry prices, so Total always equals the sum of all entries.
func Aggregate(entries []LineEntry) Order {
	order := Order{Lines: make([]AggregatedLine, 0), Total: decimal.Zero}
	index := make(map[string]int, len(entries))

	for _, e := range entries {
		i, ok := index[e.Name]
		if !ok {
			i = len(order.Lines)
			index[e.Name] = i
			order.Lines = append(order.Lines, AggregatedLine{
				Name:      e.Name,
				UnitPrice: e.UnitPrice,
				Subtotal:  decimal.Zero,
			})
		}
		order.Lines[i].Quantity++
		order.Lines[i].Subtotal = order.Lines[i].Subtotal.Add(e.UnitPrice)
		order.Total = order.Total.Add(e.UnitPrice)
	}

	return order
}
