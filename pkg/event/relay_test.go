package event

import "testing"

func TestIsProducerType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "newOrder", input: TypeNewOrder, want: true},
		{name: "updateStatus", input: TypeUpdateOrderStatus, want: true},
		{name: "newSale", input: TypeNewSale, want: true},
		{name: "orderSnapshot", input: TypeOrderSnapshot, want: false},
		{name: "salesSnapshot", input: TypeSalesSnapshot, want: false},
		{name: "unknown", input: "PING", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProducerType(tt.input); got != tt.want {
				t.Errorf("IsProducerType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTopicFor(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "newOrder", input: TypeNewOrder, want: RelayTicketsTopic},
		{name: "updateStatus", input: TypeUpdateOrderStatus, want: RelayTicketsTopic},
		{name: "newSale", input: TypeNewSale, want: RelaySalesTopic},
		{name: "snapshotNotMirrored", input: TypeOrderSnapshot, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TopicFor(tt.input); got != tt.want {
				t.Errorf("TopicFor(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
