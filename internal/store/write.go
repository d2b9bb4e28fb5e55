package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/poe/internal/ir"
)

// ErrDuplicateCall is returned when a call ID or seq is already journaled.
var ErrDuplicateCall = errors.New("call already journaled")

// ProofWrite describes the proofs table change produced by an accepted call.
// A nil Proof deletes the row for Fingerprint.
type ProofWrite struct {
	Fingerprint []byte
	Proof       *ir.ProofRecord
}

// CommitCall journals a call together with its event (if any) and the
// resulting proof change (if any) in a single transaction.
//
// Rejected calls are journaled too, with no event and no proof write, so
// replay can confirm they are still rejected.
func (s *Store) CommitCall(ctx context.Context, call ir.Call, events []ir.EventRecord, write *ProofWrite) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit call: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO calls
		(id, seq, batch, block, op, caller, receiver, fingerprint, outcome, weight, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		call.ID,
		call.Seq,
		call.Batch,
		int64(call.Block),
		string(call.Op),
		call.Caller,
		call.Receiver,
		nonNil(call.Fingerprint),
		call.Outcome,
		int64(call.Weight),
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("commit call: insert call: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit call: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("commit call %s (seq %d): %w", call.ID, call.Seq, ErrDuplicateCall)
	}

	for _, ev := range events {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events
			(call_id, seq, block, kind, caller, receiver, fingerprint)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			ev.CallID,
			ev.Seq,
			int64(ev.Block),
			ev.Kind,
			ev.Caller,
			ev.Receiver,
			nonNil(ev.Fingerprint),
		)
		if err != nil {
			return fmt.Errorf("commit call: insert event: %w", err)
		}
	}

	if write != nil {
		if err := applyProofWrite(ctx, tx, write); err != nil {
			return fmt.Errorf("commit call: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit call: commit: %w", err)
	}

	return nil
}

func applyProofWrite(ctx context.Context, tx *sql.Tx, write *ProofWrite) error {
	key := StorageKey(write.Fingerprint)

	if write.Proof == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM proofs WHERE storage_key = ?`, key); err != nil {
			return fmt.Errorf("delete proof: %w", err)
		}
		return nil
	}

	// Upsert updates the existing row in place for transfers.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO proofs (storage_key, fingerprint, owner, registered_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(storage_key) DO UPDATE SET
			owner = excluded.owner,
			registered_at = excluded.registered_at
	`,
		key,
		nonNil(write.Fingerprint),
		write.Proof.Owner,
		int64(write.Proof.RegisteredAt),
	)
	if err != nil {
		return fmt.Errorf("upsert proof: %w", err)
	}
	return nil
}
