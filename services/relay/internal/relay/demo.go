package relay

import (
	"context"
	"fmt"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/pkg/enums/ticketstatus"
	"github.com/appetiteclub/canteen/pkg/event"
	"github.com/google/uuid"
)

const demoOrigin = "seed:demo"

type demoItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type demoTicket struct {
	ID        string     `json:"id"`
	ReceiptNo int64      `json:"receiptNo"`
	Note      *string    `json:"note"`
	Status    string     `json:"status,omitempty"`
	Items     []demoItem `json:"items"`
}

type demoSale struct {
	ID         string  `json:"id"`
	ReceiptNo  int64   `json:"receiptNo"`
	WaiterName string  `json:"waiterName"`
	Total      float64 `json:"total"`
}

// DemoSeedingFunc returns a start hook that feeds a few sample orders and
// sales through the hub, exactly as a POS terminal would send them.
func DemoSeedingFunc(hub *Hub, logger apt.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		if logger == nil {
			logger = apt.NewNoopLogger()
		}

		frames, err := demoFrames()
		if err != nil {
			return err
		}

		for _, frame := range frames {
			if err := hub.Submit(ctx, demoOrigin, frame); err != nil {
				return fmt.Errorf("cannot submit demo frame: %w", err)
			}
		}

		logger.Info("demo frames submitted", "count", len(frames))
		return nil
	}
}

func demoFrames() ([][]byte, error) {
	note := "no onions"
	tickets := []demoTicket{
		{
			ID:        uuid.NewString(),
			ReceiptNo: 1001,
			Items: []demoItem{
				{Name: "Milanesa napolitana", Quantity: 1},
				{Name: "Papas fritas", Quantity: 2},
			},
		},
		{
			ID:        uuid.NewString(),
			ReceiptNo: 1002,
			Note:      &note,
			Status:    ticketstatus.Statuses.InProgress.Code(),
			Items: []demoItem{
				{Name: "Hamburguesa completa", Quantity: 2},
			},
		},
		{
			ID:        uuid.NewString(),
			ReceiptNo: 1003,
			Items: []demoItem{
				{Name: "Empanada de carne", Quantity: 6},
				{Name: "Agua mineral", Quantity: 1},
			},
		},
	}

	sales := []demoSale{
		{ID: uuid.NewString(), ReceiptNo: 1001, WaiterName: "Lucia", Total: 5400.5},
		{ID: uuid.NewString(), ReceiptNo: 1002, WaiterName: "Martin", Total: 7800},
	}

	var frames [][]byte
	for _, t := range tickets {
		frame, err := EncodeFrame(event.TypeNewOrder, t)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	for _, s := range sales {
		frame, err := EncodeFrame(event.TypeNewSale, s)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

