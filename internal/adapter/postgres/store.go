package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/patron"
)

// Store implements database.Store and every lookup port using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Items ---

const itemColumns = `id, barcode, instance_id, holdings_id, title, status, material_type_id, permanent_loan_type_id, temporary_loan_type_id`

func scanItem(row scannable) (item.Item, error) {
	var it item.Item
	err := row.Scan(&it.ID, &it.Barcode, &it.InstanceID, &it.HoldingsID, &it.Title, &it.Status,
		&it.MaterialTypeID, &it.PermanentLoanTypeID, &it.TemporaryLoanTypeID)
	return it, err
}

func (s *Store) ItemByID(ctx context.Context, id string) (*item.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx)))
	if err != nil {
		return nil, notFoundWrap(err, "get item %s", id)
	}
	return &it, nil
}

func (s *Store) ItemByBarcode(ctx context.Context, barcode string) (*item.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE barcode = $1 AND tenant_id = $2`, barcode, tenantFromCtx(ctx)))
	if err != nil {
		return nil, notFoundWrap(err, "get item by barcode %s", barcode)
	}
	return &it, nil
}

func (s *Store) ItemsByInstance(ctx context.Context, instanceID string) ([]item.Item, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM items WHERE instance_id = $1 AND tenant_id = $2 ORDER BY barcode`,
		instanceID, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list items for instance %s: %w", instanceID, err)
	}
	return collect(rows, scanItem)
}

// --- Patrons ---

const patronColumns = `id, barcode, patron_group_id, active, expires_at`

func scanPatron(row scannable) (patron.Patron, error) {
	var p patron.Patron
	err := row.Scan(&p.ID, &p.Barcode, &p.PatronGroupID, &p.Active, &p.ExpiresAt)
	return p, err
}

func (s *Store) PatronByID(ctx context.Context, id string) (*patron.Patron, error) {
	p, err := scanPatron(s.pool.QueryRow(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE id = $1 AND tenant_id = $2`, id, tenantFromCtx(ctx)))
	if err != nil {
		return nil, notFoundWrap(err, "get patron %s", id)
	}
	return &p, nil
}

func (s *Store) PatronByBarcode(ctx context.Context, barcode string) (*patron.Patron, error) {
	p, err := scanPatron(s.pool.QueryRow(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE barcode = $1 AND tenant_id = $2`, barcode, tenantFromCtx(ctx)))
	if err != nil {
		return nil, notFoundWrap(err, "get patron by barcode %s", barcode)
	}
	return &p, nil
}

// ActiveBetween returns the newest relationship in which proxyID acts for
// sponsorID. Whether it is still in force is left to the caller.
func (s *Store) ActiveBetween(ctx context.Context, sponsorID, proxyID string) (*patron.ProxyRelationship, error) {
	var r patron.ProxyRelationship
	err := s.pool.QueryRow(ctx,
		`SELECT id, sponsor_id, proxy_id, active, expires_at FROM proxy_relationships
		 WHERE sponsor_id = $1 AND proxy_id = $2 AND tenant_id = $3
		 ORDER BY active DESC, expires_at DESC NULLS FIRST LIMIT 1`,
		sponsorID, proxyID, tenantFromCtx(ctx),
	).Scan(&r.ID, &r.SponsorID, &r.ProxyID, &r.Active, &r.ExpiresAt)
	if err != nil {
		return nil, notFoundWrap(err, "get proxy relationship %s/%s", sponsorID, proxyID)
	}
	return &r, nil
}

// --- Blocks ---

func (s *Store) ManualBlocks(ctx context.Context, patronID string) ([]patron.ManualBlock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, patron_id, description, borrowing, renewals, requests, expiration_date
		 FROM manual_blocks WHERE patron_id = $1 AND tenant_id = $2 ORDER BY id`,
		patronID, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list manual blocks for %s: %w", patronID, err)
	}
	return collect(rows, func(row scannable) (patron.ManualBlock, error) {
		var b patron.ManualBlock
		err := row.Scan(&b.ID, &b.PatronID, &b.Description, &b.Borrowing, &b.Renewals, &b.Requests, &b.ExpirationDate)
		return b, err
	})
}

func (s *Store) AutomatedBlocks(ctx context.Context, patronID string) ([]patron.AutomatedBlock, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT message, block_borrowing, block_renewals, block_requests
		 FROM automated_blocks WHERE patron_id = $1 AND tenant_id = $2`,
		patronID, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list automated blocks for %s: %w", patronID, err)
	}
	return collect(rows, func(row scannable) (patron.AutomatedBlock, error) {
		var b patron.AutomatedBlock
		err := row.Scan(&b.Message, &b.BlockBorrowing, &b.BlockRenewals, &b.BlockRequests)
		return b, err
	})
}
