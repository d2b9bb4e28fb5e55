package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/registry"
	"github.com/roach88/poe/internal/store"
)

// Publisher forwards committed events downstream.
// Implemented by the publish package.
type Publisher interface {
	Publish(ctx context.Context, ev ir.EventRecord) error
}

// Request is one registry call submitted to the engine.
// Receiver is only used by transfer.
type Request struct {
	Op          ir.Op
	Caller      string
	Receiver    string
	Fingerprint []byte
}

// Receipt is the journaled result of a request.
//
// Err carries the registry rejection (ProofAlreadyClaimed, NoSuchProof, ...)
// and is nil when the call was accepted. A rejected call is still journaled.
type Receipt struct {
	Call   ir.Call
	Events []ir.EventRecord
	Err    error
}

// Accepted reports whether the registry accepted the call.
func (r Receipt) Accepted() bool {
	return r.Err == nil
}

// Config holds the engine parameters.
type Config struct {
	MaxBytesInHash   uint32
	BlockWeightLimit uint64
}

// Engine hosts a registry: it serializes calls, stamps them with the block
// height, journals them and forwards their events.
//
// CRITICAL: All registry mutations happen under mu, either from the Run loop
// goroutine or from Apply. The registry itself is not safe for concurrent use.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Apply(): safe from any goroutine, serialized with the Run loop
//   - Run(): must be called from exactly one goroutine
type Engine struct {
	mu sync.Mutex

	store     *store.Store
	cfg       Config
	seq       *Clock
	height    *Height
	meter     *WeightMeter
	registry  *registry.Registry
	recorder  *registry.Recorder
	batch     string
	queue     *requestQueue
	publisher Publisher
	metrics   *Metrics

	// haltErr is set when a journal commit fails after the registry mutated.
	haltErr error
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithPublisher forwards every committed event to p.
// Publish failures are logged and never undo a commit.
func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithMetrics records engine metrics on m.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Open creates an Engine on top of a journal.
//
// The registry state is rebuilt by re-applying every journaled call. Open
// fails if the journal does not replay to the recorded outcomes, or if the
// store was initialized with a different MaxBytesInHash.
//
// The new session resumes the seq clock from the journal head and opens a
// fresh block at head block + 1.
func Open(
	ctx context.Context,
	s *store.Store,
	cfg Config,
	batches BatchTokenGenerator,
	opts ...EngineOption,
) (*Engine, error) {
	if cfg.BlockWeightLimit == 0 {
		cfg.BlockWeightLimit = DefaultBlockWeightLimit
	}
	if err := s.EnsureMaxBytesInHash(ctx, cfg.MaxBytesInHash); err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	height := NewHeightAt(0)
	rec := &registry.Recorder{}
	reg, err := registry.New(registry.Config{MaxBytesInHash: cfg.MaxBytesInHash}, height, rec)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}

	report, err := replayInto(ctx, s, reg, height, rec)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	if !report.Deterministic {
		first := report.Mismatches[0]
		return nil, fmt.Errorf("open engine: journal diverges at seq %d (%s): want %q, got %q",
			first.Seq, first.Field, first.Want, first.Got)
	}

	headSeq, headBlock, err := s.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	height.Set(headBlock + 1)

	e := &Engine{
		store:    s,
		cfg:      cfg,
		seq:      NewClockAt(headSeq),
		height:   height,
		meter:    NewWeightMeter(cfg.BlockWeightLimit),
		registry: reg,
		recorder: rec,
		batch:    batches.Generate(),
		queue:    newRequestQueue(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.metrics.SetBlockHeight(height.Value())
	e.metrics.SetProofs(reg.Len())

	slog.Info("engine opened",
		"batch", e.batch,
		"replayed_calls", report.Calls,
		"proofs", reg.Len(),
		"seq", headSeq,
		"block", height.Value(),
	)

	return e, nil
}

// Submit enqueues a request for the Run loop and waits for its receipt.
//
// Returns ENGINE_STOPPED if the engine no longer accepts requests, and
// ctx.Err() if ctx ends first. A request abandoned by ctx may still be
// journaled.
func (e *Engine) Submit(ctx context.Context, req Request) (Receipt, error) {
	reply := make(chan result, 1)
	if !e.queue.Enqueue(job{req: req, reply: reply}) {
		return Receipt{}, NewStoppedError(e.batch)
	}

	select {
	case r := <-reply:
		return r.receipt, r.err
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
}

// Apply processes a request synchronously on the caller's goroutine.
// Used by the CLI and the conformance harness, which have no Run loop.
func (e *Engine) Apply(ctx context.Context, req Request) (Receipt, error) {
	if e.queue.Closed() {
		return Receipt{}, NewStoppedError(e.batch)
	}
	return e.process(ctx, req)
}

// Run starts the single-writer request loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// Requests still queued when ctx is cancelled are answered with
// ENGINE_STOPPED. After Stop, queued requests are drained normally.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting", "batch", e.batch)

	for {
		j, ok := e.queue.TryDequeue()
		if ok {
			receipt, err := e.process(ctx, j.req)
			j.reply <- result{receipt: receipt, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled", "batch", e.batch)
			e.queue.Close()
			e.rejectPending()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed,
			// which will cause this case to fire immediately
			if e.queue.Closed() && e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed", "batch", e.batch)
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the request queue, which will cause Run() to return once drained.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) rejectPending() {
	for {
		j, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		j.reply <- result{err: NewStoppedError(e.batch)}
	}
}

// SealBlock closes the current block and opens the next one, regardless of
// the weight consumed so far. Returns the new height.
func (e *Engine) SealBlock() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.height.Advance()
	e.meter.Reset()
	e.metrics.SetBlockHeight(h)
	return h
}

// process runs one request through the registry and commits it.
func (e *Engine) process(ctx context.Context, req Request) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.haltErr != nil {
		e.metrics.IncrementRefused(ErrCodeHalted)
		return Receipt{}, NewHaltedError(e.batch, e.haltErr)
	}

	req, err := e.normalize(req)
	if err != nil {
		e.metrics.IncrementRefused(ErrCodeInvalidCall)
		return Receipt{}, err
	}

	weight := WeightOf(req.Op)
	sealed, err := e.meter.Charge(weight)
	if err != nil {
		var we *WeightExceededError
		if errors.As(err, &we) {
			e.metrics.IncrementRefused(ErrCodeWeightExceeded)
			return Receipt{}, NewWeightError(e.batch, we)
		}
		return Receipt{}, err
	}
	if sealed {
		h := e.height.Advance()
		e.metrics.SetBlockHeight(h)
		slog.Debug("block sealed", "batch", e.batch, "height", h)
	}

	slog.Debug("processing call",
		"op", req.Op,
		"caller", req.Caller,
		"fingerprint", ir.FormatFingerprint(req.Fingerprint),
		"block", e.height.Value(),
	)

	opErr := applyOp(e.registry, req.Op, req.Caller, req.Receiver, req.Fingerprint)
	deposited := e.recorder.Drain()

	call := ir.Call{
		Seq:         e.seq.Next(),
		Batch:       e.batch,
		Block:       e.height.Value(),
		Op:          req.Op,
		Caller:      req.Caller,
		Receiver:    req.Receiver,
		Fingerprint: req.Fingerprint,
		Outcome:     OutcomeOf(opErr),
		Weight:      weight,
	}
	call.ID, err = ir.CallID(call)
	if err != nil {
		return Receipt{}, e.halt(call, err)
	}

	records := eventRecords(call, deposited)
	write := e.proofWrite(req.Fingerprint, opErr)

	// The registry has already mutated; a cancelled caller must not leave the
	// journal behind it.
	if err := e.store.CommitCall(context.WithoutCancel(ctx), call, records, write); err != nil {
		return Receipt{}, e.halt(call, err)
	}

	e.publish(ctx, records)

	e.metrics.ObserveCall(string(call.Op), call.Outcome, call.Weight)
	for _, r := range records {
		e.metrics.IncrementEvent(r.Kind)
	}
	e.metrics.SetProofs(e.registry.Len())

	slog.Info("call committed",
		"id", call.ID,
		"seq", call.Seq,
		"block", call.Block,
		"op", call.Op,
		"caller", call.Caller,
		"outcome", call.Outcome,
	)

	return Receipt{Call: call, Events: records, Err: opErr}, nil
}

// halt marks the engine unusable after the registry mutated but the call
// could not be journaled.
func (e *Engine) halt(call ir.Call, err error) error {
	e.haltErr = err
	slog.Error("journal commit failed, engine halted",
		"error", err,
		"batch", e.batch,
		"seq", call.Seq,
		"block", call.Block,
		"op", call.Op,
		"caller", call.Caller,
		"fingerprint", ir.FormatFingerprint(call.Fingerprint),
		"outcome", call.Outcome,
	)
	return NewHaltedError(e.batch, err)
}

func (e *Engine) publish(ctx context.Context, records []ir.EventRecord) {
	if e.publisher == nil {
		return
	}
	for _, r := range records {
		if err := e.publisher.Publish(ctx, r); err != nil {
			slog.Warn("event publish failed",
				"error", err,
				"call_id", r.CallID,
				"kind", r.Kind,
				"seq", r.Seq,
			)
		}
	}
}

// normalize validates a request and normalizes its identities.
func (e *Engine) normalize(req Request) (Request, error) {
	if !ir.ValidOps[req.Op] {
		return req, NewInvalidCallError(e.batch, fmt.Sprintf("unknown op %q", req.Op))
	}
	req.Caller = ir.NormalizeIdentity(req.Caller)
	if req.Caller == "" {
		return req, NewInvalidCallError(e.batch, "caller is required")
	}
	if req.Op == ir.OpTransfer {
		req.Receiver = ir.NormalizeIdentity(req.Receiver)
		if req.Receiver == "" {
			return req, NewInvalidCallError(e.batch, "receiver is required for transfer")
		}
	} else {
		req.Receiver = ""
	}
	if req.Fingerprint == nil {
		req.Fingerprint = []byte{}
	}
	return req, nil
}

// proofWrite describes the proofs table change of an accepted call.
func (e *Engine) proofWrite(fp []byte, opErr error) *store.ProofWrite {
	if opErr != nil {
		return nil
	}
	write := &store.ProofWrite{Fingerprint: fp}
	f, err := e.registry.Fingerprint(fp)
	if err != nil {
		return nil
	}
	if claim, ok := e.registry.Lookup(f); ok {
		write.Proof = &ir.ProofRecord{
			Fingerprint:  fp,
			Owner:        string(claim.Owner),
			RegisteredAt: uint64(claim.RegisteredAt),
		}
	}
	return write
}

// applyOp dispatches one call to the registry.
func applyOp(reg *registry.Registry, op ir.Op, caller, receiver string, fp []byte) error {
	f, err := reg.Fingerprint(fp)
	if err != nil {
		return err
	}
	switch op {
	case ir.OpCreate:
		return reg.Create(registry.Identity(caller), f)
	case ir.OpTransfer:
		return reg.Transfer(registry.Identity(caller), registry.Identity(receiver), f)
	case ir.OpRevoke:
		return reg.Revoke(registry.Identity(caller), f)
	default:
		return fmt.Errorf("unknown op %q", op)
	}
}

// OutcomeOf renders a registry result as the journaled outcome string.
func OutcomeOf(err error) string {
	if err == nil {
		return ir.OutcomeOk
	}
	if code := registry.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

// eventRecords converts deposited registry events to journal records.
func eventRecords(call ir.Call, events []registry.Event) []ir.EventRecord {
	if len(events) == 0 {
		return nil
	}
	records := make([]ir.EventRecord, len(events))
	for i, ev := range events {
		records[i] = ir.EventRecord{
			CallID:      call.ID,
			Seq:         call.Seq,
			Block:       call.Block,
			Kind:        string(ev.Kind),
			Caller:      string(ev.Caller),
			Receiver:    string(ev.Receiver),
			Fingerprint: ev.Fingerprint.Bytes(),
		}
	}
	return records
}

// Lookup returns the claim held on fp, if any.
func (e *Engine) Lookup(fp []byte) (registry.Claim, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.registry.Fingerprint(fp)
	if err != nil {
		return registry.Claim{}, false, err
	}
	claim, ok := e.registry.Lookup(f)
	return claim, ok, nil
}

// Claims returns a snapshot of every live claim, sorted by fingerprint.
func (e *Engine) Claims() []registry.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Claims()
}

// Batch returns the batch token of this session.
func (e *Engine) Batch() string {
	return e.batch
}

// Height returns the current block height.
func (e *Engine) Height() uint64 {
	return e.height.Value()
}

// Seq returns the seq of the last journaled call.
func (e *Engine) Seq() int64 {
	return e.seq.Current()
}

// Config returns the engine parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// Halted returns the commit failure that halted the engine, or nil.
func (e *Engine) Halted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.haltErr
}

// QueueLen returns the number of requests waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}
