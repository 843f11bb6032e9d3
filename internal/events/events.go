package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

const TypeOrderPlaced = "order.placed"

type OrderPlacedLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type OrderPlaced struct {
	EventID    string            `json:"eventId"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurredAt"`
	OrderID    string            `json:"orderId"`
	UserID     string            `json:"userId"`
	Total      decimal.Decimal   `json:"total"`
	Lines      []OrderPlacedLine `json:"lines"`
}

// NewOrderPlaced builds the outbox record announcing o on topic, keyed by order id.
func NewOrderPlaced(o domain.Order, topic string) (repos.OutboxRecord, error) {
	ev := OrderPlaced{
		EventID:    uuid.NewString(),
		Type:       TypeOrderPlaced,
		OccurredAt: time.Now().UTC(),
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Total,
	}
	for _, l := range o.Lines {
		ev.Lines = append(ev.Lines, OrderPlacedLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Price:       l.Price,
			Quantity:    l.Quantity,
		})
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return repos.OutboxRecord{}, err
	}
	return repos.OutboxRecord{EventID: ev.EventID, Topic: topic, Key: o.ID, Payload: string(data)}, nil
}
