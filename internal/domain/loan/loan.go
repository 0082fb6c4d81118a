// Package loan defines the Loan domain entity.
package loan

import "time"

// Status represents whether a loan is still outstanding.
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

// Action records the last circulation action taken on a loan.
type Action string

const (
	ActionCheckedOut                Action = "checkedout"
	ActionCheckedOutThroughOverride Action = "checkedOutThroughOverride"
	ActionRenewed                   Action = "renewed"
	ActionRenewedThroughOverride    Action = "renewedThroughOverride"
)

// Loan is an item lent to a patron.
type Loan struct {
	ID                     string    `json:"id"`
	TenantID               string    `json:"tenant_id,omitempty"`
	ItemID                 string    `json:"item_id"`
	UserID                 string    `json:"user_id"`
	ProxyUserID            string    `json:"proxy_user_id,omitempty"`
	Status                 Status    `json:"status"`
	Action                 Action    `json:"action"`
	ActionComment          string    `json:"action_comment,omitempty"`
	LoanDate               time.Time `json:"loan_date"`
	DueDate                time.Time `json:"due_date"`
	RenewalCount           int       `json:"renewal_count"`
	LoanPolicyID           string    `json:"loan_policy_id"`
	CheckoutServicePointID string    `json:"checkout_service_point_id"`
	Version                int       `json:"version"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// IsOpen reports whether the loan is outstanding.
func (l *Loan) IsOpen() bool { return l.Status == StatusOpen }

// Renew extends the loan to dueDate and records the action.
func (l *Loan) Renew(dueDate time.Time, action Action, comment string) {
	l.DueDate = dueDate
	l.RenewalCount++
	l.Action = action
	l.ActionComment = comment
}

// CheckOutRequest is the input for checking an item out by barcode.
type CheckOutRequest struct {
	ItemBarcode      string    `json:"item_barcode"`
	UserBarcode      string    `json:"user_barcode"`
	ProxyUserBarcode string    `json:"proxy_user_barcode,omitempty"`
	ServicePointID   string    `json:"service_point_id"`
	LoanDate         time.Time `json:"loan_date,omitempty"`
}

// RenewRequest is the input for renewing a loan by item and user barcode.
type RenewRequest struct {
	ItemBarcode    string `json:"item_barcode"`
	UserBarcode    string `json:"user_barcode"`
	ServicePointID string `json:"service_point_id,omitempty"`
}
