package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period tags the predefined reporting windows.
type Period string

const (
	PeriodDaily   Period = "DAILY"
	PeriodWeekly  Period = "WEEKLY"
	PeriodMonthly Period = "MONTHLY"
)

// ReportFilter selects the reporting window: a predefined period, or an
// explicit [StartDate, EndDate) range when Period is empty.
type ReportFilter struct {
	Period    Period
	StartDate *time.Time
	EndDate   *time.Time
}

// Window resolves the filter to a concrete [start, end) range relative to
// now. DAILY covers today, WEEKLY starts on the most recent Sunday, MONTHLY
// covers the calendar month. Without a period the explicit [StartDate,
// EndDate) range applies, defaulting to epoch start and now.
func (f ReportFilter) Window(now time.Time) (start, end time.Time) {
	switch f.Period {
	case PeriodDaily:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 0, 1)
	case PeriodWeekly:
		start = time.Date(now.Year(), now.Month(), now.Day()-int(now.Weekday()), 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)
	default:
		start = time.Unix(0, 0).UTC()
		if f.StartDate != nil {
			start = *f.StartDate
		}
		end = now
		if f.EndDate != nil {
			end = *f.EndDate
		}
	}
	return start, end
}

// ClientRanking is one entry of the top-clients leaderboard.
type ClientRanking struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	OrdersCount int             `json:"ordersCount"`
}

// FinancialSummary holds the summed monetary figures of a window.
type FinancialSummary struct {
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TotalSubTotal decimal.Decimal `json:"totalSubTotal"`
}

// Aggregation is the raw aggregation result computed by the repository.
type Aggregation struct {
	TotalOrders int
	Summary     FinancialSummary
	TopClients  []ClientRanking
}

// DateRange is the resolved reporting window.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is the period-bounded financial report returned to callers.
type Report struct {
	Period           string           `json:"period"`
	Range            DateRange        `json:"range"`
	TotalOrders      int              `json:"totalOrders"`
	FinancialSummary FinancialSummary `json:"financialSummary"`
	TopClients       []ClientRanking  `json:"topClients"`
}

// ExportItem is one denormalized order line for spreadsheet export.
type ExportItem struct {
	ProductName    string
	Brand          string
	Quantity       int
	UnitPrice      decimal.Decimal
	SuggestedPrice *decimal.Decimal
}

// ExportOrder is one denormalized order for spreadsheet export.
type ExportOrder struct {
	InvoiceNumber      string
	CreatedAt          time.Time
	ClientName         string
	ClientCUIT         string
	ClientIvaCondition string
	SubTotal           decimal.Decimal
	TotalAmount        decimal.Decimal
	IncreasePct        *decimal.Decimal
	DiscountPct        *decimal.Decimal
	SuggestedPriceRate *decimal.Decimal
	Items              []ExportItem
}
