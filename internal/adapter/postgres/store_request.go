package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/request"
)

const requestColumns = `id, requester_id, proxy_user_id, item_id, instance_id, request_type, status, request_level,
	position, request_date, pickup_service_point_id, version`

// openStatuses lists the request statuses that keep a request in its queue.
var openStatuses = []string{
	string(request.StatusOpenNotYetFilled),
	string(request.StatusOpenAwaitingPickup),
	string(request.StatusOpenInTransit),
	string(request.StatusOpenAwaitingDeliver),
}

func scanRequest(row scannable) (request.Request, error) {
	var r request.Request
	err := row.Scan(&r.ID, &r.RequesterID, &r.ProxyUserID, &r.ItemID, &r.InstanceID, &r.Type, &r.Status, &r.Level,
		&r.Position, &r.RequestDate, &r.PickupServicePointID, &r.Version)
	return r, err
}

func (s *Store) RequestByID(ctx context.Context, id string) (*request.Request, error) {
	tid := tenantFromCtx(ctx)
	r, err := scanRequest(s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1 AND tenant_id = $2`, id, tid))
	if err != nil {
		return nil, notFoundWrap(err, "get request %s", id)
	}
	r.TenantID = tid
	return &r, nil
}

func (s *Store) QueueForItem(ctx context.Context, itemID string) (*request.Queue, error) {
	return s.loadQueue(ctx, request.ScopeItem, itemID)
}

func (s *Store) QueueForInstance(ctx context.Context, instanceID string) (*request.Queue, error) {
	return s.loadQueue(ctx, request.ScopeInstance, instanceID)
}

// loadQueue reads the open requests of a queue in position order together
// with the queue version. A queue never written has version 0.
func (s *Store) loadQueue(ctx context.Context, scope request.Scope, key string) (*request.Queue, error) {
	tid := tenantFromCtx(ctx)
	q := &request.Queue{Scope: scope, Key: key}

	err := s.pool.QueryRow(ctx,
		`SELECT version FROM request_queues WHERE scope = $1 AND key = $2 AND tenant_id = $3`,
		scope, key, tid).Scan(&q.Version)
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("get %s queue %s: %w", scope, key, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM requests
		 WHERE queue_scope = $1 AND queue_key = $2 AND tenant_id = $3 AND status = ANY($4)
		 ORDER BY position`,
		scope, key, tid, openStatuses)
	if err != nil {
		return nil, fmt.Errorf("list %s queue %s: %w", scope, key, err)
	}
	reqs, err := collect(rows, scanRequest)
	if err != nil {
		return nil, fmt.Errorf("scan %s queue %s: %w", scope, key, err)
	}
	for i := range reqs {
		reqs[i].TenantID = tid
	}
	q.Requests = reqs
	return q, nil
}

func (s *Store) CreateRequest(ctx context.Context, r *request.Request, q *request.Queue) error {
	return s.inTx(ctx, "create request", func(tx pgx.Tx, tid string) error {
		if err := claimQueue(ctx, tx, tid, q); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO requests (tenant_id, id, requester_id, proxy_user_id, item_id, instance_id, request_type,
			                       status, request_level, queue_scope, queue_key, position, request_date, pickup_service_point_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			tid, r.ID, r.RequesterID, r.ProxyUserID, r.ItemID, r.InstanceID, r.Type,
			r.Status, r.Level, q.Scope, q.Key, r.Position, r.RequestDate, r.PickupServicePointID)
		if err != nil {
			return fmt.Errorf("insert request %s: %w", r.ID, err)
		}
		r.Version = 1
		return writePositions(ctx, tx, tid, q, r.ID)
	}, q)
}

func (s *Store) MoveRequest(ctx context.Context, r *request.Request, from, to *request.Queue) error {
	queues := []*request.Queue{from, to}
	if from == to {
		queues = queues[:1]
	}
	return s.inTx(ctx, "move request", func(tx pgx.Tx, tid string) error {
		if from != to {
			if err := claimQueue(ctx, tx, tid, from); err != nil {
				return err
			}
			if err := writePositions(ctx, tx, tid, from, ""); err != nil {
				return err
			}
		}
		if err := claimQueue(ctx, tx, tid, to); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE requests SET item_id = $3, instance_id = $4, request_type = $5, queue_scope = $6, queue_key = $7,
			                     position = $8, version = version + 1
			 WHERE id = $1 AND tenant_id = $2`,
			r.ID, tid, r.ItemID, r.InstanceID, r.Type, to.Scope, to.Key, r.Position)
		if err := execExpectOne(tag, err, domain.ErrNotFound, "move request %s", r.ID); err != nil {
			return err
		}
		r.Version++
		return writePositions(ctx, tx, tid, to, r.ID)
	}, queues...)
}

func (s *Store) SaveQueue(ctx context.Context, q *request.Queue) error {
	return s.inTx(ctx, "save queue", func(tx pgx.Tx, tid string) error {
		if err := claimQueue(ctx, tx, tid, q); err != nil {
			return err
		}
		return writePositions(ctx, tx, tid, q, "")
	}, q)
}

// inTx runs fn in a transaction and, once it commits, advances the version
// of every queue it wrote.
func (s *Store) inTx(ctx context.Context, what string, fn func(pgx.Tx, string) error, queues ...*request.Queue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx, tenantFromCtx(ctx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", what, err)
	}
	for _, q := range queues {
		q.Version++
	}
	return nil
}

// claimQueue advances the stored queue version if it still equals q.Version.
// A queue read before it existed is created at version 1.
func claimQueue(ctx context.Context, tx pgx.Tx, tid string, q *request.Queue) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	if q.Version == 0 {
		tag, err = tx.Exec(ctx,
			`INSERT INTO request_queues (tenant_id, scope, key, version) VALUES ($1, $2, $3, 1)
			 ON CONFLICT DO NOTHING`,
			tid, q.Scope, q.Key)
	} else {
		tag, err = tx.Exec(ctx,
			`UPDATE request_queues SET version = version + 1
			 WHERE scope = $1 AND key = $2 AND version = $3 AND tenant_id = $4`,
			q.Scope, q.Key, q.Version, tid)
	}
	return execExpectOne(tag, err, domain.ErrConflict, "save %s queue %s", q.Scope, q.Key)
}

// writePositions stores the position of every request in q. The request
// named by skip was just written with its position and is left alone.
func writePositions(ctx context.Context, tx pgx.Tx, tid string, q *request.Queue, skip string) error {
	batch := &pgx.Batch{}
	for i := range q.Requests {
		r := &q.Requests[i]
		if r.ID == skip {
			continue
		}
		batch.Queue(
			`UPDATE requests SET position = $1, version = version + 1 WHERE id = $2 AND tenant_id = $3`,
			r.Position, r.ID, tid)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write %s queue %s positions: %w", q.Scope, q.Key, err)
	}
	return nil
}
