package event

import "encoding/json"

// Wire message types exchanged between the relay and its clients.
const (
	TypeNewOrder          = "NEW_ORDER"
	TypeOrderSnapshot     = "ORDER_SNAPSHOT"
	TypeUpdateOrderStatus = "UPDATE_ORDER_STATUS"
	TypeNewSale           = "NEW_SALE"
	TypeSalesSnapshot     = "SALES_SNAPSHOT"
)

// NATS subjects used by the relay mirror and inbound feed.
const (
	RelayTicketsTopic = "relay.kitchen.tickets"
	RelaySalesTopic   = "relay.sales"
	RelayInboundTopic = "relay.inbound"
)

// Envelope is the tagged frame carried over every relay channel.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ProducerTypes are the message types a client may send to the relay.
var ProducerTypes = []string{
	TypeNewOrder,
	TypeUpdateOrderStatus,
	TypeNewSale,
}

// IsProducerType reports whether t may be sent by a client.
func IsProducerType(t string) bool {
	for _, pt := range ProducerTypes {
		if pt == t {
			return true
		}
	}
	return false
}

// TopicFor returns the mirror subject for a broadcast type, or "" when the
// type is not mirrored.
func TopicFor(t string) string {
	switch t {
	case TypeNewOrder, TypeUpdateOrderStatus:
		return RelayTicketsTopic
	case TypeNewSale:
		return RelaySalesTopic
	default:
		return ""
	}
}
