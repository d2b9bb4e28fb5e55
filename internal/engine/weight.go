package engine

import (
	"fmt"

	"github.com/roach88/poe/internal/ir"
)

// Call weights. Revoke costs more because it also clears storage.
const (
	WeightCreate   uint64 = 1_000
	WeightTransfer uint64 = 1_000
	WeightRevoke   uint64 = 10_000
)

// DefaultBlockWeightLimit is the default weight budget of one block.
const DefaultBlockWeightLimit uint64 = 1_000_000

// WeightOf returns the weight charged for op. Rejected calls pay the same
// weight as accepted ones.
func WeightOf(op ir.Op) uint64 {
	switch op {
	case ir.OpCreate:
		return WeightCreate
	case ir.OpTransfer:
		return WeightTransfer
	case ir.OpRevoke:
		return WeightRevoke
	default:
		return 0
	}
}

// WeightMeter tracks the weight consumed in the current block and decides
// when the block is full.
//
// When a call does not fit in the remaining budget, the meter reports that
// the block must be sealed and the call is charged to a fresh block. A call
// heavier than the whole limit never fits and is rejected.
type WeightMeter struct {
	limit uint64
	used  uint64
}

// NewWeightMeter creates a meter with the given per-block limit.
func NewWeightMeter(limit uint64) *WeightMeter {
	return &WeightMeter{limit: limit}
}

// Charge adds weight to the current block. sealed is true when the previous
// block was full and the charge went to a new one.
func (m *WeightMeter) Charge(weight uint64) (sealed bool, err error) {
	if weight > m.limit {
		return false, &WeightExceededError{Weight: weight, Limit: m.limit}
	}
	if m.used+weight > m.limit {
		m.used = weight
		return true, nil
	}
	m.used += weight
	return false, nil
}

// Reset starts a fresh block.
func (m *WeightMeter) Reset() {
	m.used = 0
}

// Used returns the weight consumed in the current block.
func (m *WeightMeter) Used() uint64 {
	return m.used
}

// Limit returns the per-block weight limit.
func (m *WeightMeter) Limit() uint64 {
	return m.limit
}

// WeightExceededError reports a call that can never fit in a block.
type WeightExceededError struct {
	Weight uint64
	Limit  uint64
}

func (e *WeightExceededError) Error() string {
	return fmt.Sprintf("call weight %d exceeds block weight limit %d", e.Weight, e.Limit)
}
