package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/canteen/pkg/enums/ticketstatus"
	"github.com/appetiteclub/canteen/pkg/event"
	"github.com/appetiteclub/canteen/pkg/relayclient"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

const sendTimeout = 10 * time.Second

type orderItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type orderPayload struct {
	ID        string      `json:"id"`
	ReceiptNo int64       `json:"receiptNo"`
	CreatedAt string      `json:"createdAt"`
	Note      *string     `json:"note"`
	Status    string      `json:"status,omitempty"`
	Items     []orderItem `json:"items"`
}

type statusPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type salePayload struct {
	ID         string  `json:"id"`
	ReceiptNo  int64   `json:"receiptNo"`
	WaiterName string  `json:"waiterName"`
	Total      float64 `json:"total"`
	CreatedAt  string  `json:"createdAt"`
}

// Order sends a NEW_ORDER built from flags.
func Order(ctx context.Context, args []string, config ConfigReader, out io.Writer, logger apt.Logger) error {
	var conn RelayConnection
	var id, note, status string
	var receiptNo int64
	var items []string

	flagSet := pflag.NewFlagSet("order", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.StringVar(&id, "id", "", "ticket id (generated when empty)")
	flagSet.Int64Var(&receiptNo, "receipt", 0, "receipt number")
	flagSet.StringArrayVar(&items, "item", nil, "item as name[:quantity], repeatable")
	flagSet.StringVar(&note, "note", "", "kitchen note")
	flagSet.StringVar(&status, "status", "", "initial status (new or in_progress)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	payload, err := buildOrder(id, receiptNo, items, note, status, time.Now())
	if err != nil {
		return err
	}
	if err := send(ctx, &conn, config, event.TypeNewOrder, payload, logger); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s %s\n", event.TypeNewOrder, payload.ID)
	return nil
}

// Status sends an UPDATE_ORDER_STATUS.
func Status(ctx context.Context, args []string, config ConfigReader, out io.Writer, logger apt.Logger) error {
	var conn RelayConnection
	var id, status string

	flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.StringVar(&id, "id", "", "ticket id")
	flagSet.StringVar(&status, "status", "", "new, in_progress or done")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	payload, err := buildStatus(id, status)
	if err != nil {
		return err
	}
	if err := send(ctx, &conn, config, event.TypeUpdateOrderStatus, payload, logger); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s %s -> %s\n", event.TypeUpdateOrderStatus, payload.ID, payload.Status)
	return nil
}

// Sale sends a NEW_SALE.
func Sale(ctx context.Context, args []string, config ConfigReader, out io.Writer, logger apt.Logger) error {
	var conn RelayConnection
	var id, waiter, createdAt string
	var receiptNo int64
	var total float64

	flagSet := pflag.NewFlagSet("sale", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.StringVar(&id, "id", "", "sale id (generated when empty)")
	flagSet.Int64Var(&receiptNo, "receipt", 0, "receipt number")
	flagSet.StringVar(&waiter, "waiter", "", "waiter name")
	flagSet.Float64Var(&total, "total", 0, "sale total")
	flagSet.StringVar(&createdAt, "created-at", "", "sale timestamp, RFC 3339 (now when empty)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	payload, err := buildSale(id, receiptNo, waiter, total, createdAt, time.Now())
	if err != nil {
		return err
	}
	if err := send(ctx, &conn, config, event.TypeNewSale, payload, logger); err != nil {
		return err
	}
	fmt.Fprintf(out, "sent %s %s\n", event.TypeNewSale, payload.ID)
	return nil
}

func buildOrder(id string, receiptNo int64, rawItems []string, note, status string, now time.Time) (orderPayload, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if len(rawItems) == 0 {
		return orderPayload{}, fmt.Errorf("at least one --item is required")
	}
	if status != "" && status != ticketstatus.Statuses.New.Code() && status != ticketstatus.Statuses.InProgress.Code() {
		return orderPayload{}, fmt.Errorf("invalid initial status %q", status)
	}

	items := make([]orderItem, 0, len(rawItems))
	for _, raw := range rawItems {
		item, err := parseItem(raw)
		if err != nil {
			return orderPayload{}, err
		}
		items = append(items, item)
	}

	payload := orderPayload{
		ID:        id,
		ReceiptNo: receiptNo,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
		Status:    status,
		Items:     items,
	}
	if note = strings.TrimSpace(note); note != "" {
		payload.Note = &note
	}
	return payload, nil
}

// parseItem reads "name" or "name:quantity".
func parseItem(raw string) (orderItem, error) {
	name := strings.TrimSpace(raw)
	quantity := 1

	if i := strings.LastIndex(raw, ":"); i >= 0 {
		q, err := strconv.Atoi(strings.TrimSpace(raw[i+1:]))
		if err != nil {
			return orderItem{}, fmt.Errorf("invalid quantity in item %q", raw)
		}
		name = strings.TrimSpace(raw[:i])
		quantity = q
	}
	if name == "" {
		return orderItem{}, fmt.Errorf("item %q has no name", raw)
	}
	if quantity < 1 {
		return orderItem{}, fmt.Errorf("item %q quantity must be at least 1", raw)
	}

	return orderItem{ID: uuid.NewString(), Name: name, Quantity: quantity}, nil
}

func buildStatus(id, status string) (statusPayload, error) {
	if id == "" {
		return statusPayload{}, fmt.Errorf("--id is required")
	}
	s := ticketstatus.ByName(status)
	if s == nil {
		return statusPayload{}, fmt.Errorf("invalid status %q", status)
	}
	return statusPayload{ID: id, Status: s.Code()}, nil
}

func buildSale(id string, receiptNo int64, waiter string, total float64, createdAt string, now time.Time) (salePayload, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if waiter = strings.TrimSpace(waiter); waiter == "" {
		return salePayload{}, fmt.Errorf("--waiter is required")
	}
	if total < 0 {
		return salePayload{}, fmt.Errorf("total cannot be negative")
	}
	if createdAt == "" {
		createdAt = now.UTC().Format(time.RFC3339Nano)
	} else if _, err := time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return salePayload{}, fmt.Errorf("invalid --created-at: %w", err)
	}
	return salePayload{
		ID:         id,
		ReceiptNo:  receiptNo,
		WaiterName: waiter,
		Total:      total,
		CreatedAt:  createdAt,
	}, nil
}

// send delivers one frame and waits until it left the outbox.
func send(ctx context.Context, conn *RelayConnection, config ConfigReader, msgType string, payload any, logger apt.Logger) error {
	url, err := conn.Resolve(config)
	if err != nil {
		return err
	}

	client := relayclient.NewClient(relayclient.Config{URL: url}, logger)
	if err := client.Send(msgType, payload); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_ = client.Start(ctx)
	defer func() { _ = client.Stop(context.Background()) }()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if client.Connected() && client.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("cannot deliver %s to %s: %w", msgType, url, ctx.Err())
		case <-ticker.C:
		}
	}
}
