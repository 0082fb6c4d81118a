// Package item defines the physical item record consulted by circulation rules.
package item

// Status is the circulation status of an item.
type Status string

const (
	StatusAvailable        Status = "Available"
	StatusCheckedOut       Status = "Checked out"
	StatusAwaitingPickup   Status = "Awaiting pickup"
	StatusAwaitingDelivery Status = "Awaiting delivery"
	StatusInTransit        Status = "In transit"
	StatusPaged            Status = "Paged"
	StatusOnOrder          Status = "On order"
	StatusInProcess        Status = "In process"
	StatusMissing          Status = "Missing"
	StatusDeclaredLost     Status = "Declared lost"
	StatusClaimedReturned  Status = "Claimed returned"
	StatusAgedToLost       Status = "Aged to lost"
	StatusWithdrawn        Status = "Withdrawn"
	StatusLostAndPaid      Status = "Lost and paid"
)

// Item is a single physical copy of an instance.
type Item struct {
	ID             string `json:"id"`
	Barcode        string `json:"barcode"`
	InstanceID     string `json:"instance_id"`
	HoldingsID     string `json:"holdings_id,omitempty"`
	Title          string `json:"title,omitempty"`
	Status         Status `json:"status"`
	MaterialTypeID string `json:"material_type_id"`
	// PermanentLoanTypeID applies unless a temporary loan type is set.
	PermanentLoanTypeID string `json:"permanent_loan_type_id"`
	TemporaryLoanTypeID string `json:"temporary_loan_type_id,omitempty"`
}

// LoanTypeID returns the loan type that applies to the item.
func (i *Item) LoanTypeID() string {
	if i.TemporaryLoanTypeID != "" {
		return i.TemporaryLoanTypeID
	}
	return i.PermanentLoanTypeID
}

// IsCheckedOut reports whether the item is out on loan.
func (i *Item) IsCheckedOut() bool { return i.Status == StatusCheckedOut }

// IsClaimedReturned reports whether the patron claims to have returned the item.
func (i *Item) IsClaimedReturned() bool { return i.Status == StatusClaimedReturned }

// IsDeclaredLost reports whether the item was declared lost.
func (i *Item) IsDeclaredLost() bool { return i.Status == StatusDeclaredLost }

// IsAgedToLost reports whether the item aged to lost.
func (i *Item) IsAgedToLost() bool { return i.Status == StatusAgedToLost }

// AllowedForCheckOut reports whether the status permits a new loan.
func (i *Item) AllowedForCheckOut() bool {
	switch i.Status {
	case StatusMissing, StatusDeclaredLost, StatusClaimedReturned,
		StatusAgedToLost, StatusWithdrawn, StatusLostAndPaid:
		return false
	}
	return true
}

// AllowsRequestType reports whether a request of type t ("Page", "Hold",
// "Recall") may be placed on an item in the current status.
func (i *Item) AllowsRequestType(t string) bool {
	switch t {
	case "Page":
		return i.Status == StatusAvailable
	case "Hold":
		switch i.Status {
		case StatusDeclaredLost, StatusClaimedReturned, StatusAgedToLost,
			StatusWithdrawn, StatusLostAndPaid:
			return false
		}
		return true
	case "Recall":
		switch i.Status {
		case StatusCheckedOut, StatusAwaitingPickup, StatusAwaitingDelivery,
			StatusInTransit, StatusPaged, StatusOnOrder, StatusInProcess:
			return true
		}
		return false
	}
	return false
}
