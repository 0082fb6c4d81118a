package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/port/lookup"
)

const loanColumns = `id, item_id, user_id, proxy_user_id, status, action, action_comment, loan_date, due_date,
	renewal_count, loan_policy_id, checkout_service_point_id, version, created_at, updated_at`

func scanLoan(row scannable) (loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(&l.ID, &l.ItemID, &l.UserID, &l.ProxyUserID, &l.Status, &l.Action, &l.ActionComment,
		&l.LoanDate, &l.DueDate, &l.RenewalCount, &l.LoanPolicyID, &l.CheckoutServicePointID,
		&l.Version, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *Store) LoanByID(ctx context.Context, id string) (*loan.Loan, error) {
	tid := tenantFromCtx(ctx)
	l, err := scanLoan(s.pool.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE id = $1 AND tenant_id = $2`, id, tid))
	if err != nil {
		return nil, notFoundWrap(err, "get loan %s", id)
	}
	l.TenantID = tid
	return &l, nil
}

func (s *Store) OpenLoanForItem(ctx context.Context, itemID string) (*loan.Loan, error) {
	tid := tenantFromCtx(ctx)
	l, err := scanLoan(s.pool.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE item_id = $1 AND status = $2 AND tenant_id = $3`,
		itemID, loan.StatusOpen, tid))
	if err != nil {
		return nil, notFoundWrap(err, "get open loan for item %s", itemID)
	}
	l.TenantID = tid
	return &l, nil
}

func (s *Store) OpenLoansWithItems(ctx context.Context, userID string) ([]lookup.LoanedItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id, l.item_id, l.user_id, l.proxy_user_id, l.status, l.action, l.action_comment, l.loan_date, l.due_date,
		        l.renewal_count, l.loan_policy_id, l.checkout_service_point_id, l.version, l.created_at, l.updated_at,
		        i.id, i.barcode, i.instance_id, i.holdings_id, i.title, i.status, i.material_type_id,
		        i.permanent_loan_type_id, i.temporary_loan_type_id
		 FROM loans l JOIN items i ON i.tenant_id = l.tenant_id AND i.id = l.item_id
		 WHERE l.user_id = $1 AND l.status = $2 AND l.tenant_id = $3
		 ORDER BY l.loan_date`,
		userID, loan.StatusOpen, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list open loans for %s: %w", userID, err)
	}
	return collect(rows, func(row scannable) (lookup.LoanedItem, error) {
		var li lookup.LoanedItem
		l, it := &li.Loan, &li.Item
		err := row.Scan(&l.ID, &l.ItemID, &l.UserID, &l.ProxyUserID, &l.Status, &l.Action, &l.ActionComment,
			&l.LoanDate, &l.DueDate, &l.RenewalCount, &l.LoanPolicyID, &l.CheckoutServicePointID,
			&l.Version, &l.CreatedAt, &l.UpdatedAt,
			&it.ID, &it.Barcode, &it.InstanceID, &it.HoldingsID, &it.Title, &it.Status, &it.MaterialTypeID,
			&it.PermanentLoanTypeID, &it.TemporaryLoanTypeID)
		return li, err
	})
}

// CreateLoan stores l and marks its item checked out in one transaction.
// A second open loan for the same item violates idx_loans_item_open.
func (s *Store) CreateLoan(ctx context.Context, l *loan.Loan) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tid := tenantFromCtx(ctx)
	err = tx.QueryRow(ctx,
		`INSERT INTO loans (tenant_id, id, item_id, user_id, proxy_user_id, status, action, action_comment,
		                    loan_date, due_date, renewal_count, loan_policy_id, checkout_service_point_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING version, created_at, updated_at`,
		tid, l.ID, l.ItemID, l.UserID, l.ProxyUserID, l.Status, l.Action, l.ActionComment,
		l.LoanDate, l.DueDate, l.RenewalCount, l.LoanPolicyID, l.CheckoutServicePointID,
	).Scan(&l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE items SET status = $1 WHERE id = $2 AND tenant_id = $3`,
		item.StatusCheckedOut, l.ItemID, tid)
	if err := execExpectOne(tag, err, domain.ErrNotFound, "check out item %s", l.ItemID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit loan: %w", err)
	}
	l.TenantID = tid
	return nil
}

func (s *Store) UpdateLoan(ctx context.Context, l *loan.Loan) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE loans SET status = $3, action = $4, action_comment = $5, due_date = $6, renewal_count = $7,
		                  version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2 AND tenant_id = $8
		 RETURNING version, updated_at`,
		l.ID, l.Version, l.Status, l.Action, l.ActionComment, l.DueDate, l.RenewalCount, tenantFromCtx(ctx),
	).Scan(&l.Version, &l.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("update loan %s: %w", l.ID, domain.ErrConflict)
		}
		return fmt.Errorf("update loan %s: %w", l.ID, err)
	}
	return nil
}
