package insight

import "math/big"

// KPISnapshot holds the aggregated dashboard indicators.
type KPISnapshot struct {
	TotalSales     float64 `json:"total_sales"`
	TotalProfit    float64 `json:"total_profit"`
	TopProduct     string  `json:"top_product"`
	TopProductQty  float64 `json:"top_product_qty"`
	TopRegion      string  `json:"top_region"`
	TopRegionSales float64 `json:"top_region_sales"`
}

// KPIDisplay is the formatted form of a snapshot.
type KPIDisplay struct {
	TotalSales       string `json:"total_sales"`
	TotalProfit      string `json:"total_profit"`
	TopProduct       string `json:"top_product"`
	TopProductDetail string `json:"top_product_detail"`
	TopRegion        string `json:"top_region"`
	TopRegionDetail  string `json:"top_region_detail"`
}

// KPIColumns are the columns an aggregation resolved.
type KPIColumns struct {
	Sales    string
	Profit   string
	Product  string
	Region   string
	Quantity string
}

// ResolveKPIColumns resolves every KPI role against the dataset columns.
func ResolveKPIColumns(columns []string, resolver ColumnResolver) KPIColumns {
	if resolver == nil {
		resolver = NewAliasResolver()
	}
	return KPIColumns{
		Sales:    resolver.Resolve(columns, RoleSales),
		Profit:   resolver.Resolve(columns, RoleProfit),
		Product:  resolver.Resolve(columns, RoleProduct),
		Region:   resolver.Resolve(columns, RoleRegion),
		Quantity: resolver.Resolve(columns, RoleQuantity),
	}
}

// AggregateKPIs derives the KPI snapshot. Non-numeric sales and profit count as
// 0, an unparseable quantity counts as 1, and the leader is the first key whose
// total strictly exceeds every earlier one starting from 0.
func AggregateKPIs(ds Dataset, resolver ColumnResolver) KPISnapshot {
	cols := ResolveKPIColumns(ds.Columns, resolver)

	var snap KPISnapshot
	var totalSales, totalProfit exactSum
	products := newTally()
	regions := newTally()
	for _, row := range ds.Rows {
		sales := floatOr(row.Cell(cols.Sales), 0)
		totalSales.add(sales)
		totalProfit.add(floatOr(row.Cell(cols.Profit), 0))

		if product := row.Cell(cols.Product); present(product) {
			products.add(textValue(product), floatOr(row.Cell(cols.Quantity), 1))
		}
		if region := row.Cell(cols.Region); present(region) {
			regions.add(textValue(region), sales)
		}
	}
	snap.TotalSales = totalSales.value()
	snap.TotalProfit = totalProfit.value()
	snap.TopProduct, snap.TopProductQty = products.leader()
	snap.TopRegion, snap.TopRegionSales = regions.leader()
	return snap
}

// Display formats the snapshot for the KPI cards.
func (s KPISnapshot) Display() KPIDisplay {
	return KPIDisplay{
		TotalSales:       FormatUSD(s.TotalSales),
		TotalProfit:      FormatUSD(s.TotalProfit),
		TopProduct:       s.TopProduct,
		TopProductDetail: FormatQuantity(s.TopProductQty) + " units sold",
		TopRegion:        s.TopRegion,
		TopRegionDetail:  FormatUSD(s.TopRegionSales) + " in sales",
	}
}

// exactSum adds float64 values without rounding, so the total does not depend
// on row order. The result is rounded once when read.
type exactSum struct {
	r big.Rat
}

func (e *exactSum) add(v float64) {
	var x big.Rat
	if x.SetFloat64(v) == nil {
		return
	}
	e.r.Add(&e.r, &x)
}

func (e *exactSum) value() float64 {
	f, _ := e.r.Float64()
	return f
}

// tally accumulates totals per key, remembering first-seen order.
type tally struct {
	order  []string
	totals map[string]*exactSum
}

func newTally() *tally {
	return &tally{totals: make(map[string]*exactSum)}
}

func (t *tally) add(key string, v float64) {
	sum, ok := t.totals[key]
	if !ok {
		sum = new(exactSum)
		t.totals[key] = sum
		t.order = append(t.order, key)
	}
	sum.add(v)
}

func (t *tally) leader() (string, float64) {
	name, best := Placeholder, 0.0
	for _, key := range t.order {
		if total := t.totals[key].value(); total > best {
			name, best = key, total
		}
	}
	return name, best
}

func (t *tally) each(fn func(key string, total float64)) {
	for _, key := range t.order {
		fn(key, t.totals[key].value())
	}
}
