package domain

import (
	"fmt"
	"math"
)

// LineItem is a product snapshot taken when it was first added to the cart.
// Later catalog changes do not reach it.
type LineItem struct {
	ID       ProductID `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Image    string    `json:"image"`
	Price    float64   `json:"price"`
	Quantity int       `json:"quantity"`
}

func (i LineItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

type Totals struct {
	TotalItems int     `json:"total_items"`
	TotalPrice float64 `json:"total_price"`
}

// DisplayPrice rounds TotalPrice to cents. Accumulation keeps full precision.
func (t Totals) DisplayPrice() string {
	return FormatAmount(t.TotalPrice)
}

// ComputeTotals folds the items into their aggregate counts. TotalItems
// saturates at math.MaxInt.
func ComputeTotals(items []LineItem) Totals {
	var t Totals
	for _, item := range items {
		if item.Quantity > 0 && t.TotalItems > math.MaxInt-item.Quantity {
			t.TotalItems = math.MaxInt
		} else {
			t.TotalItems += item.Quantity
		}
		t.TotalPrice += item.Subtotal()
	}
	return t
}

type Snapshot struct {
	Items []LineItem `json:"items"`
	Totals
}

func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", math.Round(v*100)/100)
}
