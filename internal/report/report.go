// Package report renders a static HTML snapshot of marketplace activity for
// demo purposes. Everything charted is public ledger state: counts, amounts,
// terms, APRs. Encrypted scores never reach this package.
package report

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

type Snapshot struct {
	Requests uint64
	Offers   uint64
	Loans    uint64

	OfferPoints []OfferPoint
}

// OfferPoint is one lender offer positioned by amount and APR.
type OfferPoint struct {
	OfferID   uint64
	RequestID uint64
	Amount    int64
	APRBps    int64
	Active    bool
}

func Render(w io.Writer, snap Snapshot) error {
	page := components.NewPage().SetPageTitle("Marketplace Activity")
	page.AddCharts(countsBar(snap), offerScatter(snap.OfferPoints))
	return page.Render(w)
}

func countsBar(snap Snapshot) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Ledger collections"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{"requests", "offers", "loans"}).
		AddSeries("count", []opts.BarData{
			{Value: snap.Requests},
			{Value: snap.Offers},
			{Value: snap.Loans},
		})
	return bar
}

func offerScatter(points []OfferPoint) *charts.Scatter {
	sc := charts.NewScatter()
	sc.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Offers: amount vs APR"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "amount"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "APR (bps)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	var active, closed []opts.ScatterData
	for _, p := range points {
		item := opts.ScatterData{Value: []interface{}{p.Amount, p.APRBps, p.OfferID, p.RequestID}}
		if p.Active {
			active = append(active, item)
		} else {
			closed = append(closed, item)
		}
	}
	sc.AddSeries("active", active)
	sc.AddSeries("closed", closed)
	return sc
}
