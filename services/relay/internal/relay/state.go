package relay

import (
	"encoding/json"

	"github.com/appetiteclub/canteen/pkg/clock"
	"github.com/appetiteclub/canteen/pkg/enums/ticketstatus"
)

// State holds the active kitchen tickets and the day-bucketed sales. It is
// not safe for concurrent use: the Hub goroutine is its only owner.
type State struct {
	clock clock.Clock

	// tickets indexed by id
	tickets map[string]*Ticket
	// ids in snapshot order
	order []string
	// sales by day key
	sales map[string][]Sale
}

// NewState creates an empty state computing days with c.
func NewState(c clock.Clock) *State {
	if c == nil {
		c = clock.Real(nil)
	}
	return &State{
		clock:   c,
		tickets: make(map[string]*Ticket),
		sales:   make(map[string][]Sale),
	}
}

// ApplyNewOrder stores the normalized ticket. A ticket whose id is already
// active is replaced and moves to the end of the snapshot order.
func (s *State) ApplyNewOrder(payload json.RawMessage) (Ticket, bool) {
	ticket, ok := NormalizeTicket(payload, s.clock.Now())
	if !ok {
		return Ticket{}, false
	}

	if _, exists := s.tickets[ticket.ID]; exists {
		s.removeFromOrder(ticket.ID)
	}
	stored := ticket
	s.tickets[ticket.ID] = &stored
	s.order = append(s.order, ticket.ID)

	return ticket, true
}

// ApplyStatusUpdate moves an active ticket to a new status; done removes it.
// Updates for unknown ids are rejected.
func (s *State) ApplyStatusUpdate(payload json.RawMessage) (StatusUpdate, bool) {
	update, ok := NormalizeStatusUpdate(payload)
	if !ok {
		return StatusUpdate{}, false
	}

	ticket := s.tickets[update.ID]
	if ticket == nil {
		return StatusUpdate{}, false
	}

	if status := ticketstatus.ByName(update.Status); status != nil && status.Terminal() {
		s.remove(update.ID)
		return update, true
	}

	ticket.Status = update.Status
	return update, true
}

// ApplyNewSale appends the normalized sale to its day bucket.
func (s *State) ApplyNewSale(payload json.RawMessage) (Sale, bool) {
	sale, at, ok := NormalizeSale(payload, s.clock.Now())
	if !ok {
		return Sale{}, false
	}

	day := clock.DayKey(s.clock, at)
	s.sales[day] = append(s.sales[day], sale)
	return sale, true
}

// Tickets returns the active tickets in snapshot order.
func (s *State) Tickets() []Ticket {
	result := make([]Ticket, 0, len(s.order))
	for _, id := range s.order {
		if ticket := s.tickets[id]; ticket != nil {
			result = append(result, *ticket)
		}
	}
	return result
}

// SalesFor returns the bucket for day.
func (s *State) SalesFor(day string) SalesSnapshot {
	bucket := s.sales[day]
	sales := make([]Sale, len(bucket))
	copy(sales, bucket)
	return SalesSnapshot{Day: day, Sales: sales}
}

// SalesToday returns the bucket for the current day.
func (s *State) SalesToday() SalesSnapshot {
	return s.SalesFor(clock.Today(s.clock))
}

func (s *State) remove(id string) {
	if _, ok := s.tickets[id]; !ok {
		return
	}
	delete(s.tickets, id)
	s.removeFromOrder(id)
}

func (s *State) removeFromOrder(id string) {
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
