package event

import (
	"encoding/json"

	"foodcourt/internal/models"
)

// User identifies a notification recipient. Two Users with equal fields are
// interchangeable, which is what makes the type usable as a map key.
type User struct {
	UserID int
	Role   models.Role
}

// Notification is one of the live-update messages pushed to listeners. Each
// variant serializes as one JSON object with a "type" discriminator.
type Notification interface {
	notification()
}

// OrderStatusChange is sent to both the order's customer and the owning
// merchant whenever the order's status changes.
type OrderStatusChange struct {
	OrderID int
	Status  models.StatusDetail
}

func (OrderStatusChange) notification() {}

func (n OrderStatusChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string              `json:"type"`
		OrderID int                 `json:"order_id"`
		Status  models.StatusDetail `json:"status"`
	}{"ORDER_STATUS_CHANGE", n.OrderID, n.Status})
}

// OrderQueueChange is sent to a customer whose active order's queue position
// may have shifted.
type OrderQueueChange struct {
	OrderID int
	Queue   models.Queue
}

func (OrderQueueChange) notification() {}

func (n OrderQueueChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string       `json:"type"`
		OrderID int          `json:"order_id"`
		Queue   models.Queue `json:"queue"`
	}{"ORDER_QUEUE_CHANGE", n.OrderID, n.Queue})
}
