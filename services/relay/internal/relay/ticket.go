package relay

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/appetiteclub/canteen/pkg/enums/ticketstatus"
)

// maxQuantity caps item quantities so out-of-range floats never overflow int.
const maxQuantity = 1 << 20

// TicketItem is one line of a kitchen ticket.
type TicketItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Ticket is the kitchen-prep state of one order. Items never change after
// the ticket is created; only Status moves.
type Ticket struct {
	ID        string       `json:"id"`
	ReceiptNo int64        `json:"receiptNo"`
	CreatedAt string       `json:"createdAt"`
	Note      *string      `json:"note"`
	Status    string       `json:"status"`
	Items     []TicketItem `json:"items"`
}

// StatusUpdate is the payload of UPDATE_ORDER_STATUS.
type StatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// NormalizeTicket turns a NEW_ORDER payload into a Ticket. It reports false
// when the payload is not an object or lacks a non-empty id, a numeric
// receiptNo or an items array.
func NormalizeTicket(payload json.RawMessage, now time.Time) (Ticket, bool) {
	fields, ok := decodeObject(payload)
	if !ok {
		return Ticket{}, false
	}

	id, ok := stringField(fields, "id")
	if !ok || id == "" {
		return Ticket{}, false
	}

	receiptNo, ok := integerField(fields, "receiptNo")
	if !ok {
		return Ticket{}, false
	}

	rawItems, ok := arrayField(fields, "items")
	if !ok {
		return Ticket{}, false
	}

	items := make([]TicketItem, 0, len(rawItems))
	for _, raw := range rawItems {
		item, ok := normalizeItem(raw)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	status := ticketstatus.Statuses.New.Code()
	if s, _ := stringField(fields, "status"); s == ticketstatus.Statuses.InProgress.Code() {
		status = s
	}

	return Ticket{
		ID:        id,
		ReceiptNo: receiptNo,
		CreatedAt: timestampField(fields, "createdAt", now),
		Note:      noteField(fields, "note"),
		Status:    status,
		Items:     items,
	}, true
}

// normalizeItem drops entries that are not objects or have a blank name, and
// clamps quantity to at least 1.
func normalizeItem(raw json.RawMessage) (TicketItem, bool) {
	fields, ok := decodeObject(raw)
	if !ok {
		return TicketItem{}, false
	}

	name, _ := stringField(fields, "name")
	if name == "" {
		return TicketItem{}, false
	}

	id, _ := stringField(fields, "id")

	quantity := 1
	if q, ok := numberField(fields, "quantity"); ok {
		switch {
		case q >= maxQuantity:
			quantity = maxQuantity
		case q >= 1:
			quantity = int(q)
		}
	}

	return TicketItem{ID: id, Name: name, Quantity: quantity}, true
}

// NormalizeStatusUpdate validates an UPDATE_ORDER_STATUS payload. Whether the
// id references an active ticket is decided by the State.
func NormalizeStatusUpdate(payload json.RawMessage) (StatusUpdate, bool) {
	fields, ok := decodeObject(payload)
	if !ok {
		return StatusUpdate{}, false
	}

	id, ok := stringField(fields, "id")
	if !ok || id == "" {
		return StatusUpdate{}, false
	}

	name, _ := stringField(fields, "status")
	status := ticketstatus.ByName(name)
	if status == nil {
		return StatusUpdate{}, false
	}

	return StatusUpdate{ID: id, Status: status.Code()}, true
}

func noteField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var note string
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}
	return &note
}
