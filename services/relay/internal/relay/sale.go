package relay

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Sale is one completed, paid transaction.
type Sale struct {
	ID         string  `json:"id"`
	ReceiptNo  int64   `json:"receiptNo"`
	WaiterName string  `json:"waiterName"`
	Total      float64 `json:"total"`
	CreatedAt  string  `json:"createdAt"`
}

// SalesSnapshot is the payload of SALES_SNAPSHOT.
type SalesSnapshot struct {
	Day   string `json:"day"`
	Sales []Sale `json:"sales"`
}

// SalesSummary is a day bucket with its money total, served by the snapshot API.
type SalesSummary struct {
	Day   string          `json:"day"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
	Sales []Sale          `json:"sales"`
}

// NormalizeSale turns a NEW_SALE payload into a Sale and returns the instant
// it is bucketed by. Missing or unparseable createdAt values are replaced by
// now, so such sales land in the current day.
func NormalizeSale(payload json.RawMessage, now time.Time) (Sale, time.Time, bool) {
	fields, ok := decodeObject(payload)
	if !ok {
		return Sale{}, time.Time{}, false
	}

	id, ok := stringField(fields, "id")
	if !ok || id == "" {
		return Sale{}, time.Time{}, false
	}

	receiptNo, ok := integerField(fields, "receiptNo")
	if !ok {
		return Sale{}, time.Time{}, false
	}

	waiter, ok := stringField(fields, "waiterName")
	if !ok || waiter == "" {
		return Sale{}, time.Time{}, false
	}

	total := decimal.Zero
	if f, ok := numberField(fields, "total"); ok && f > 0 {
		total = decimal.NewFromFloat(f).Round(2)
	}

	createdAt, _ := stringField(fields, "createdAt")
	at, ok := parseTimestamp(createdAt, now.Location())
	if !ok {
		at = now
		createdAt = formatTimestamp(now)
	}

	return Sale{
		ID:         id,
		ReceiptNo:  receiptNo,
		WaiterName: waiter,
		Total:      total.InexactFloat64(),
		CreatedAt:  createdAt,
	}, at, true
}

// Summarize totals a day bucket with decimal arithmetic so cents never drift.
func Summarize(snapshot SalesSnapshot) SalesSummary {
	total := decimal.Zero
	for _, s := range snapshot.Sales {
		total = total.Add(decimal.NewFromFloat(s.Total))
	}
	return SalesSummary{
		Day:   snapshot.Day,
		Count: len(snapshot.Sales),
		Total: total.Round(2),
		Sales: snapshot.Sales,
	}
}
