package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/queryir"
	"github.com/roach88/poe/internal/querysql"
)

const callColumns = `id, seq, batch, block, op, caller, receiver, fingerprint, outcome, weight`

const eventColumns = `call_id, seq, block, kind, caller, receiver, fingerprint`

// ReadCalls returns the whole journal in seq order.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadCalls(ctx context.Context) ([]ir.Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	return collectCalls(rows)
}

// ReadCallsForFingerprint returns every call that targeted fp, in seq order.
func (s *Store) ReadCallsForFingerprint(ctx context.Context, fp []byte) ([]ir.Call, error) {
	calls, err := s.QueryCalls(ctx, queryir.Equals{Field: "fingerprint", Value: nonNil(fp)}, 0)
	if err != nil {
		return nil, fmt.Errorf("query calls for fingerprint: %w", err)
	}
	return calls, nil
}

// ReadCallsForBatch returns the calls submitted under one batch token.
func (s *Store) ReadCallsForBatch(ctx context.Context, batch string) ([]ir.Call, error) {
	calls, err := s.QueryCalls(ctx, queryir.Equals{Field: "batch", Value: batch}, 0)
	if err != nil {
		return nil, fmt.Errorf("query calls for batch: %w", err)
	}
	return calls, nil
}

// QueryCalls returns the calls matching filter in seq order, at most limit
// of them (0 = all). A nil filter matches every call.
func (s *Store) QueryCalls(ctx context.Context, filter queryir.Predicate, limit int) ([]ir.Call, error) {
	query, params, err := querysql.Compile(queryir.Select{
		From:   queryir.TableCalls,
		Fields: queryir.Columns[queryir.TableCalls],
		Filter: filter,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	return collectCalls(rows)
}

// ReadCall retrieves a single call by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadCall(ctx context.Context, id string) (ir.Call, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE id = ?
	`, id)
	return scanCall(row)
}

// ListBatches returns batch tokens in the order they first appear in the journal.
func (s *Store) ListBatches(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch FROM calls
		GROUP BY batch
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	batches := []string{}
	for rows.Next() {
		var batch string
		if err := rows.Scan(&batch); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// ReadEvents returns all events in seq order.
func (s *Store) ReadEvents(ctx context.Context) ([]ir.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY seq ASC, call_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.EventRecord{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadEventForCall returns the event emitted by a call. ok is false for
// rejected calls.
func (s *Store) ReadEventForCall(ctx context.Context, callID string) (ev ir.EventRecord, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE call_id = ?
	`, callID)
	ev, err = scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.EventRecord{}, false, nil
	}
	if err != nil {
		return ir.EventRecord{}, false, err
	}
	return ev, true, nil
}

// ReadProof returns the materialized claim on fp. ok is false if unclaimed.
func (s *Store) ReadProof(ctx context.Context, fp []byte) (proof ir.ProofRecord, ok bool, err error) {
	var registeredAt int64
	err = s.db.QueryRowContext(ctx, `
		SELECT fingerprint, owner, registered_at
		FROM proofs
		WHERE storage_key = ?
	`, StorageKey(fp)).Scan((*[]byte)(&proof.Fingerprint), &proof.Owner, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.ProofRecord{}, false, nil
	}
	if err != nil {
		return ir.ProofRecord{}, false, fmt.Errorf("read proof: %w", err)
	}
	proof.Fingerprint = nonNil(proof.Fingerprint)
	proof.RegisteredAt = uint64(registeredAt)
	return proof, true, nil
}

// ReadProofs returns all active claims ordered by fingerprint bytes.
func (s *Store) ReadProofs(ctx context.Context) ([]ir.ProofRecord, error) {
	return s.QueryProofs(ctx, nil)
}

// QueryProofs returns the active claims matching filter, ordered by
// fingerprint bytes. A nil filter matches every claim.
func (s *Store) QueryProofs(ctx context.Context, filter queryir.Predicate) ([]ir.ProofRecord, error) {
	query, params, err := querysql.Compile(queryir.Select{
		From:   queryir.TableProofs,
		Fields: queryir.Columns[queryir.TableProofs],
		Filter: filter,
	})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query proofs: %w", err)
	}
	defer rows.Close()

	proofs := []ir.ProofRecord{}
	for rows.Next() {
		var p ir.ProofRecord
		var registeredAt int64
		if err := rows.Scan((*[]byte)(&p.Fingerprint), &p.Owner, &registeredAt); err != nil {
			return nil, fmt.Errorf("scan proof: %w", err)
		}
		p.Fingerprint = nonNil(p.Fingerprint)
		p.RegisteredAt = uint64(registeredAt)
		proofs = append(proofs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proofs: %w", err)
	}
	return proofs, nil
}

// Head returns the last journaled seq and block. Both are 0 for an empty journal.
func (s *Store) Head(ctx context.Context) (seq int64, block uint64, err error) {
	var maxSeq, maxBlock sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT MAX(seq), MAX(block) FROM calls`).Scan(&maxSeq, &maxBlock)
	if err != nil {
		return 0, 0, fmt.Errorf("read head: %w", err)
	}
	return maxSeq.Int64, uint64(maxBlock.Int64), nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func collectCalls(rows *sql.Rows) ([]ir.Call, error) {
	defer rows.Close()

	calls := []ir.Call{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

func scanCall(row rowScanner) (ir.Call, error) {
	var c ir.Call
	var op string
	var block, weight int64
	var fp []byte

	if err := row.Scan(
		&c.ID, &c.Seq, &c.Batch, &block, &op, &c.Caller,
		&c.Receiver, &fp, &c.Outcome, &weight,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Call{}, err
		}
		return ir.Call{}, fmt.Errorf("scan call: %w", err)
	}

	c.Op = ir.Op(op)
	c.Block = uint64(block)
	c.Weight = uint64(weight)
	c.Fingerprint = nonNil(fp)
	return c, nil
}

func scanEvent(row rowScanner) (ir.EventRecord, error) {
	var ev ir.EventRecord
	var block int64
	var fp []byte

	if err := row.Scan(&ev.CallID, &ev.Seq, &block, &ev.Kind, &ev.Caller, &ev.Receiver, &fp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.EventRecord{}, err
		}
		return ir.EventRecord{}, fmt.Errorf("scan event: %w", err)
	}

	ev.Block = uint64(block)
	ev.Fingerprint = nonNil(fp)
	return ev, nil
}
