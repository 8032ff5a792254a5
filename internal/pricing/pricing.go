// Package pricing holds the shop's monetary arithmetic. Every function rounds
// its result half away from zero to 2 decimal places before returning it, so
// repeated aggregation never drifts below cent granularity.
package pricing

import (
	"stockledger/internal/domain"

	"github.com/shopspring/decimal"
)

const places = 2

// Tolerance is the largest difference accepted between a caller-supplied
// amount and the recomputed one.
const Tolerance = 0.01

var hundred = decimal.NewFromInt(100)

func Round2(v float64) float64 {
	return round(decimal.NewFromFloat(v))
}

func round(d decimal.Decimal) float64 {
	return d.Round(places).InexactFloat64()
}

// WeightedAvgCost merges addQty units at addUnitCost into a holding of curQty
// units at curAvgCost. It returns 0 when the combined quantity is 0.
func WeightedAvgCost(curQty int, curAvgCost float64, addQty int, addUnitCost float64) float64 {
	denominator := curQty + addQty
	if denominator == 0 {
		return 0
	}
	held := decimal.NewFromInt(int64(curQty)).Mul(decimal.NewFromFloat(curAvgCost))
	added := decimal.NewFromInt(int64(addQty)).Mul(decimal.NewFromFloat(addUnitCost))
	return round(held.Add(added).Div(decimal.NewFromInt(int64(denominator))))
}

// LineTotal prices qty units at unitPrice rounded to cents, so the total
// always equals qty times the unit price that gets stored.
func LineTotal(qty int, unitPrice float64) float64 {
	unit := decimal.NewFromFloat(unitPrice).Round(places)
	return round(decimal.NewFromInt(int64(qty)).Mul(unit))
}

func DiscountAmount(subtotal, pct float64) float64 {
	return percentOf(subtotal, pct)
}

func TaxAmount(afterDiscount, pct float64) float64 {
	return percentOf(afterDiscount, pct)
}

func percentOf(amount, pct float64) float64 {
	return round(decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(pct)).Div(hundred))
}

func GrandTotal(subtotal, discount, tax float64) float64 {
	return round(decimal.NewFromFloat(subtotal).
		Sub(decimal.NewFromFloat(discount)).
		Add(decimal.NewFromFloat(tax)))
}

func ItemProfit(unitPrice, unitCostAtSale float64, qty int) float64 {
	margin := decimal.NewFromFloat(unitPrice).Sub(decimal.NewFromFloat(unitCostAtSale))
	return round(margin.Mul(decimal.NewFromInt(int64(qty))))
}

func SaleProfit(items []domain.SaleItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(decimal.NewFromFloat(ItemProfit(item.UnitPrice, item.UnitCostAtSale, item.Qty)))
	}
	return round(total)
}

// PerUnit divides a total amount over qty units; 0 when qty is 0.
func PerUnit(total float64, qty int) float64 {
	if qty == 0 {
		return 0
	}
	return round(decimal.NewFromFloat(total).Div(decimal.NewFromInt(int64(qty))))
}

// MarginPercent is profit as a share of price; 0 when price is 0.
func MarginPercent(price, cost float64) float64 {
	if price == 0 {
		return 0
	}
	p := decimal.NewFromFloat(price)
	return round(p.Sub(decimal.NewFromFloat(cost)).Div(p).Mul(hundred))
}

// MarkupPercent is profit as a share of cost; 0 when cost is 0.
func MarkupPercent(price, cost float64) float64 {
	if cost == 0 {
		return 0
	}
	c := decimal.NewFromFloat(cost)
	return round(decimal.NewFromFloat(price).Sub(c).Div(c).Mul(hundred))
}

type Line struct {
	Qty       int
	UnitPrice float64
}

type Totals struct {
	Subtotal       float64
	DiscountAmount float64
	TaxAmount      float64
	Total          float64
}

// SaleTotals recomputes a bill. A positive discountPercent takes precedence
// over flatDiscount; tax applies to the discounted amount.
func SaleTotals(lines []Line, discountPercent, flatDiscount, taxPercent float64) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(decimal.NewFromFloat(LineTotal(line.Qty, line.UnitPrice)))
	}
	totals := Totals{Subtotal: round(subtotal)}
	if discountPercent > 0 {
		totals.DiscountAmount = DiscountAmount(totals.Subtotal, discountPercent)
	} else {
		totals.DiscountAmount = Round2(flatDiscount)
	}
	afterDiscount := round(decimal.NewFromFloat(totals.Subtotal).Sub(decimal.NewFromFloat(totals.DiscountAmount)))
	totals.TaxAmount = TaxAmount(afterDiscount, taxPercent)
	totals.Total = GrandTotal(totals.Subtotal, totals.DiscountAmount, totals.TaxAmount)
	return totals
}

func WithinTolerance(a, b float64) bool {
	diff := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(Tolerance))
}
