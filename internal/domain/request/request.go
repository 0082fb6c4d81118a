// Package request defines circulation requests and the queues they form.
package request

import "time"

// Type is the kind of request.
type Type string

const (
	TypePage   Type = "Page"
	TypeHold   Type = "Hold"
	TypeRecall Type = "Recall"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusOpenNotYetFilled    Status = "Open - Not yet filled"
	StatusOpenAwaitingPickup  Status = "Open - Awaiting pickup"
	StatusOpenInTransit       Status = "Open - In transit"
	StatusOpenAwaitingDeliver Status = "Open - Awaiting delivery"
	StatusClosedFilled        Status = "Closed - Filled"
	StatusClosedCancelled     Status = "Closed - Cancelled"
	StatusClosedUnfilled      Status = "Closed - Unfilled"
	StatusClosedPickupExpired Status = "Closed - Pickup expired"
)

// Level distinguishes item-level requests from title-level requests.
type Level string

const (
	LevelItem  Level = "Item"
	LevelTitle Level = "Title"
)

// Request is a patron's claim on an item or on any copy of a title.
type Request struct {
	ID                   string    `json:"id"`
	TenantID             string    `json:"tenant_id,omitempty"`
	RequesterID          string    `json:"requester_id"`
	ProxyUserID          string    `json:"proxy_user_id,omitempty"`
	ItemID               string    `json:"item_id,omitempty"`
	InstanceID           string    `json:"instance_id"`
	Type                 Type      `json:"request_type"`
	Status               Status    `json:"status"`
	Level                Level     `json:"request_level"`
	Position             int       `json:"position"`
	RequestDate          time.Time `json:"request_date"`
	PickupServicePointID string    `json:"pickup_service_point_id,omitempty"`
	Version              int       `json:"version"`
}

// IsOpen reports whether the request is still active.
func (r *Request) IsOpen() bool {
	switch r.Status {
	case StatusOpenNotYetFilled, StatusOpenAwaitingPickup, StatusOpenInTransit, StatusOpenAwaitingDeliver:
		return true
	}
	return false
}

// BeganFulfillment reports whether an item has already been assigned to the
// request and is on its way to, or waiting for, the requester.
func (r *Request) BeganFulfillment() bool {
	switch r.Status {
	case StatusOpenAwaitingPickup, StatusOpenInTransit, StatusOpenAwaitingDeliver:
		return true
	}
	return false
}

// IsAwaitingPickup reports whether the item waits on the hold shelf.
func (r *Request) IsAwaitingPickup() bool { return r.Status == StatusOpenAwaitingPickup }

// CreateRequest is the input for placing a new request.
type CreateRequest struct {
	RequesterID          string `json:"requester_id"`
	ProxyUserID          string `json:"proxy_user_id,omitempty"`
	ItemID               string `json:"item_id,omitempty"`
	InstanceID           string `json:"instance_id,omitempty"`
	Type                 Type   `json:"request_type"`
	Level                Level  `json:"request_level"`
	PickupServicePointID string `json:"pickup_service_point_id,omitempty"`
}

// MoveRequest is the input for moving a request to another item.
type MoveRequest struct {
	DestinationItemID string `json:"destination_item_id"`
	RequestType       Type   `json:"request_type,omitempty"`
}
