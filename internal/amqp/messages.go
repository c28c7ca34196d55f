package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/jhonier182/lista-mercado/internal/core"
)

// PriceRecordedMessage announces one appended price history entry. It carries
// everything the export worker needs so the worker never reads the entity
// store.
type PriceRecordedMessage struct {
	EntryID     string    `json:"entryId"`
	ProductID   string    `json:"productId"`
	OwnerID     string    `json:"ownerId"`
	ProductName string    `json:"productName"`
	Price       string    `json:"price"`
	Store       string    `json:"store"`
	Date        time.Time `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewPriceRecordedMessage builds a message from a stored entry.
func NewPriceRecordedMessage(e core.PriceHistoryEntry, productName string) *PriceRecordedMessage {
	return &PriceRecordedMessage{
		EntryID:     e.ID,
		ProductID:   e.ProductID,
		OwnerID:     e.OwnerID,
		ProductName: productName,
		Price:       e.Price.String(),
		Store:       e.Store,
		Date:        e.Date,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PriceRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PriceRecordedMessageFromJSON decodes and checks a message body.
func PriceRecordedMessageFromJSON(data []byte) (*PriceRecordedMessage, error) {
	var msg PriceRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.EntryID == "" || msg.ProductID == "" || msg.OwnerID == "" {
		return nil, errors.New("price message missing required ids")
	}
	if _, err := core.ParsePrice(msg.Price); err != nil {
		return nil, err
	}
	return &msg, nil
}
