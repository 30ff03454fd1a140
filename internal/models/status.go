package models

import "encoding/json"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusOrdered   OrderStatus = "ORDERED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusSettled   OrderStatus = "SETTLED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Active reports whether the order still occupies kitchen queue capacity.
func (s OrderStatus) Active() bool {
	return s == StatusOrdered || s == StatusPreparing
}

// Terminal reports whether no further transitions are permitted.
func (s OrderStatus) Terminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// CancelledBy records which side cancelled an order.
type CancelledBy string

const (
	CancelledByCustomer CancelledBy = "CUSTOMER"
	CancelledByMerchant CancelledBy = "MERCHANT"
)

// StatusDetail is the audit record created the moment an order enters a
// state. Records for prior states are retained and never mutated. Each
// variant serializes with a "type" discriminator matching its OrderStatus.
type StatusDetail interface {
	Status() OrderStatus
}

type OrderedDetail struct{}

func (OrderedDetail) Status() OrderStatus { return StatusOrdered }

func (OrderedDetail) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type OrderStatus `json:"type"`
	}{StatusOrdered})
}

type PreparingDetail struct {
	PreparedAt int64 `json:"prepared_at"`
}

func (PreparingDetail) Status() OrderStatus { return StatusPreparing }

func (d PreparingDetail) MarshalJSON() ([]byte, error) {
	type alias PreparingDetail
	return json.Marshal(struct {
		Type OrderStatus `json:"type"`
		alias
	}{StatusPreparing, alias(d)})
}

type ReadyDetail struct {
	ReadyAt int64 `json:"ready_at"`
}

func (ReadyDetail) Status() OrderStatus { return StatusReady }

func (d ReadyDetail) MarshalJSON() ([]byte, error) {
	type alias ReadyDetail
	return json.Marshal(struct {
		Type OrderStatus `json:"type"`
		alias
	}{StatusReady, alias(d)})
}

type SettledDetail struct {
	SettledAt int64 `json:"settled_at"`
}

func (SettledDetail) Status() OrderStatus { return StatusSettled }

func (d SettledDetail) MarshalJSON() ([]byte, error) {
	type alias SettledDetail
	return json.Marshal(struct {
		Type OrderStatus `json:"type"`
		alias
	}{StatusSettled, alias(d)})
}

type CancelledDetail struct {
	CancelledBy   CancelledBy `json:"cancelled_by"`
	CancelledTime int64       `json:"cancelled_time"`
	Reason        *string     `json:"reason,omitempty"`
}

func (CancelledDetail) Status() OrderStatus { return StatusCancelled }

func (d CancelledDetail) MarshalJSON() ([]byte, error) {
	type alias CancelledDetail
	return json.Marshal(struct {
		Type OrderStatus `json:"type"`
		alias
	}{StatusCancelled, alias(d)})
}
