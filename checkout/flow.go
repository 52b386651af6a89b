package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LemonSchneid/Bit-Indie-sub000/lnurl"
)

// FlowState is the lifecycle state of one checkout attempt. paid and
// expired are soft-terminal (a new create restarts the flow); error is
// recoverable by retry.
type FlowState string

const (
	StateIdle     FlowState = "idle"
	StateCreating FlowState = "creating"
	StatePolling  FlowState = "polling"
	StatePaid     FlowState = "paid"
	StateExpired  FlowState = "expired"
	StateError    FlowState = "error"
)

// Event is an imperative input to the state machine.
type Event string

const (
	// EventCreate starts a checkout attempt, or retries after error/expiry.
	EventCreate Event = "create"
	// EventCancel tears the attempt down; in-flight work is discarded.
	EventCancel Event = "cancel"
)

// Default scheduling parameters.
const (
	DefaultPollInterval = 4 * time.Second
	DefaultInvoiceTTL   = 15 * time.Minute
)

// ActiveInvoice is the invoice a flow is currently waiting on.
type ActiveInvoice struct {
	PaymentRequest string
	// PurchaseID is set on the identified path, where the purchase service
	// tracks the invoice. Guest invoices have no server-side record.
	PurchaseID    string
	SuccessAction map[string]interface{}
}

// Snapshot is what subscribers observe after each transition.
type Snapshot struct {
	State   FlowState
	Invoice *ActiveInvoice
	// Message is short user-facing text: the failure summary in the error
	// state, or a transient polling complaint. Remote protocol reasons are
	// carried verbatim.
	Message string
	// ErrorCode is the machine-readable failure code in the error state,
	// empty elsewhere.
	ErrorCode string
}

// FlowConfig wires a flow's collaborators and knobs.
type FlowConfig struct {
	// Client negotiates guest invoices directly against the payee.
	Client *lnurl.Client

	// Purchases is the external purchase service.
	Purchases PurchaseService

	// Cache is the process-wide negative-lookup cache (optional).
	Cache *MissCache

	// Destination is the payee the guest path negotiates against.
	Destination lnurl.Destination

	ItemID     string
	Identity   Identity
	AmountSats int64
	Comment    string

	// PollInterval is the fixed status-poll interval (default 4s). There is
	// deliberately no backoff: expiry bounds the loop.
	PollInterval time.Duration

	// InvoiceTTL is the local expiry deadline for an unpaid invoice
	// (default 15m).
	InvoiceTTL time.Duration

	Logger *slog.Logger
}

// Flow is one checkout attempt's state machine. All transitions are
// serialized under its mutex; results from a cancelled attempt are compared
// against a generation counter and dropped without mutating state.
type Flow struct {
	mu      sync.Mutex
	cfg     FlowConfig
	state   FlowState
	invoice *ActiveInvoice
	message string
	errCode string

	generation int
	cancel     context.CancelFunc

	subs    map[int]func(Snapshot)
	nextSub int
}

// NewFlow creates a flow in the idle state.
func NewFlow(cfg FlowConfig) *Flow {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.InvoiceTTL <= 0 {
		cfg.InvoiceTTL = DefaultInvoiceTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = lnurl.NewClient(nil)
	}
	return &Flow{
		cfg:   cfg,
		state: StateIdle,
		subs:  make(map[int]func(Snapshot)),
	}
}

// Dispatch feeds an event into the machine.
func (f *Flow) Dispatch(ev Event) error {
	switch ev {
	case EventCreate:
		return f.Create()
	case EventCancel:
		f.Cancel()
		return nil
	default:
		return fmt.Errorf("unknown checkout event %q", ev)
	}
}

// State returns the current flow state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Invoice returns the active invoice, or nil outside creating/polling/paid.
func (f *Flow) Invoice() *ActiveInvoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invoice
}

// Message returns the current user-facing message, if any.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// ErrorCode returns the failure code while in the error state, "" otherwise.
func (f *Flow) ErrorCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errCode
}

// Subscribe registers a transition observer and returns its unsubscribe
// func. Observers are invoked outside the flow lock.
func (f *Flow) Subscribe(fn func(Snapshot)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Create starts a checkout attempt. It is refused while one is already in
// flight; the creating/polling states themselves are the mutual-exclusion
// guard.
func (f *Flow) Create() error {
	f.mu.Lock()
	if f.state == StateCreating || f.state == StatePolling {
		state := f.state
		f.mu.Unlock()
		return fmt.Errorf("checkout already in flight (%s)", state)
	}

	f.generation++
	gen := f.generation
	if f.cancel != nil {
		f.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel

	f.state = StateCreating
	f.invoice = nil
	f.message = ""
	f.errCode = ""
	snap, subs := f.snapshotLocked()
	f.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	go f.run(ctx, gen)
	return nil
}

// Cancel tears down the attempt. The flow context is cancelled and the
// generation bumped, so anything still in flight is discarded silently. A
// flow caught mid-attempt returns to idle so a new Create is not refused by
// the in-flight guard; terminal states are left as they are.
func (f *Flow) Cancel() {
	f.mu.Lock()

	f.generation++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.state != StateCreating && f.state != StatePolling {
		f.mu.Unlock()
		return
	}

	f.state = StateIdle
	f.invoice = nil
	f.message = ""
	f.errCode = ""
	snap, subs := f.snapshotLocked()
	f.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// run performs one attempt: restore check, negotiation, then polling.
func (f *Flow) run(ctx context.Context, gen int) {
	if restored := f.tryRestore(ctx, gen); restored {
		return
	}
	if ctx.Err() != nil {
		return
	}

	invoice, err := f.negotiate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		code := lnurl.ErrorCode(err)
		f.cfg.Logger.Warn("invoice creation failed",
			"item_id", f.cfg.ItemID,
			"identity_kind", f.cfg.Identity.Kind,
			"code", code,
			"error", err)
		f.mutate(gen, func() {
			f.state = StateError
			f.message = userMessage(err)
			f.errCode = code
		})
		return
	}

	deadline := time.Now().Add(f.cfg.InvoiceTTL)
	if !f.mutate(gen, func() {
		f.state = StatePolling
		f.invoice = invoice
	}) {
		return
	}

	f.pollUntilDone(ctx, gen, invoice, deadline)
}

// tryRestore performs the idempotent purchase lookup. A record that already
// grants the item moves the flow straight to paid with no new invoice.
func (f *Flow) tryRestore(ctx context.Context, gen int) bool {
	if f.cfg.Purchases == nil {
		return false
	}
	if f.cfg.Cache != nil && f.cfg.Cache.MissedRecently(f.cfg.ItemID, f.cfg.Identity) {
		return false
	}

	record, err := f.cfg.Purchases.FindPurchase(ctx, f.cfg.ItemID, f.cfg.Identity)
	if err != nil {
		// A failed lookup never blocks checkout; fall through to creation.
		if ctx.Err() == nil {
			f.cfg.Logger.Warn("purchase lookup failed", "item_id", f.cfg.ItemID, "error", err)
		}
		return false
	}
	if record == nil {
		if f.cfg.Cache != nil {
			f.cfg.Cache.MarkMissing(f.cfg.ItemID, f.cfg.Identity)
		}
		return false
	}

	if f.cfg.Cache != nil {
		f.cfg.Cache.Clear(f.cfg.ItemID, f.cfg.Identity)
	}
	if !record.Settled() {
		return false
	}
	return f.mutate(gen, func() {
		f.state = StatePaid
		f.invoice = &ActiveInvoice{
			PaymentRequest: record.PaymentRequest,
			PurchaseID:     record.ID,
		}
	})
}

// negotiate obtains an invoice. Identified buyers go through the purchase
// service so the record is server-tracked; guests negotiate directly
// against the payee's destination and keep their own receipt.
func (f *Flow) negotiate(ctx context.Context) (*ActiveInvoice, error) {
	if !f.cfg.Identity.IsAnonymous() && f.cfg.Purchases != nil {
		intent, err := f.cfg.Purchases.CreateInvoice(ctx, CreateInvoiceRequest{
			ItemID:        f.cfg.ItemID,
			IdentityKind:  string(f.cfg.Identity.Kind),
			IdentityValue: f.cfg.Identity.Value,
			AmountSats:    f.cfg.AmountSats,
			Comment:       f.cfg.Comment,
		})
		if err != nil {
			return nil, err
		}
		return &ActiveInvoice{
			PaymentRequest: intent.PaymentRequest,
			PurchaseID:     intent.PurchaseID,
		}, nil
	}

	endpoint, err := lnurl.ResolvePayEndpoint(f.cfg.Destination)
	if err != nil {
		return nil, err
	}
	params, err := f.cfg.Client.FetchPayParams(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	amount := lnurl.ClampAmount(f.cfg.AmountSats, params)
	invoice, err := f.cfg.Client.RequestInvoice(ctx, params, amount, f.cfg.Comment)
	if err != nil {
		return nil, err
	}
	return &ActiveInvoice{
		PaymentRequest: invoice.PaymentRequest,
		SuccessAction:  invoice.SuccessAction,
	}, nil
}

// pollUntilDone checks the purchase status at a fixed interval until a
// terminal signal, the expiry deadline, or cancellation. One failed tick
// never ends the loop.
func (f *Flow) pollUntilDone(ctx context.Context, gen int, invoice *ActiveInvoice, deadline time.Time) {
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			f.mutate(gen, func() {
				f.state = StateExpired
				f.message = "The invoice expired before it was paid."
			})
			return
		}

		record, err := f.poll(ctx, invoice)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.cfg.Logger.Warn("status poll failed", "item_id", f.cfg.ItemID, "error", err)
			f.mutate(gen, func() {
				f.message = "Could not check payment status; still waiting."
			})
			continue
		}
		if record == nil {
			continue
		}

		if record.Settled() {
			if f.cfg.Cache != nil {
				f.cfg.Cache.Clear(f.cfg.ItemID, f.cfg.Identity)
			}
			f.mutate(gen, func() {
				f.state = StatePaid
				f.message = ""
				// Snapshots and Invoice() hand out the current pointer, so
				// filling in the purchase id must swap in a copy rather than
				// write through it.
				if f.invoice != nil && f.invoice.PurchaseID == "" {
					settled := *f.invoice
					settled.PurchaseID = record.ID
					f.invoice = &settled
				}
			})
			return
		}
		if record.Status == PurchaseExpired {
			f.mutate(gen, func() {
				f.state = StateExpired
				f.message = "The invoice expired before it was paid."
			})
			return
		}
	}
}

// poll fetches the current purchase record: by id on the identified path,
// by (item, identity) on the guest path where no server-tracked id exists.
func (f *Flow) poll(ctx context.Context, invoice *ActiveInvoice) (*Purchase, error) {
	if f.cfg.Purchases == nil {
		return nil, nil
	}
	if invoice.PurchaseID != "" {
		return f.cfg.Purchases.GetPurchase(ctx, invoice.PurchaseID)
	}
	return f.cfg.Purchases.FindPurchase(ctx, f.cfg.ItemID, f.cfg.Identity)
}

// mutate applies fn under the lock if the generation still matches, then
// notifies subscribers. Late results from a cancelled or superseded attempt
// return false and leave the flow untouched.
func (f *Flow) mutate(gen int, fn func()) bool {
	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		return false
	}
	fn()
	snap, subs := f.snapshotLocked()
	f.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// snapshotLocked captures the current observable state and subscriber list
// so callbacks run outside the lock. Must be called with the lock held.
func (f *Flow) snapshotLocked() (Snapshot, []func(Snapshot)) {
	snap := Snapshot{State: f.state, Invoice: f.invoice, Message: f.message, ErrorCode: f.errCode}
	subs := make([]func(Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	return snap, subs
}

// userMessage maps a creation failure to short actionable text. Remote
// protocol reasons pass through verbatim so wallet/processor guidance
// reaches the buyer.
func userMessage(err error) string {
	var e *lnurl.Error
	if errors.As(err, &e) && e.Code == lnurl.ErrCodeRemoteError && e.Message != "" {
		return e.Message
	}
	switch lnurl.ErrorCode(err) {
	case lnurl.ErrCodeInvalidAmount:
		return "The payment amount is not valid."
	case lnurl.ErrCodeUnreachable:
		return "Could not reach the payment service. Try again."
	case lnurl.ErrCodeInvalidEncoding, lnurl.ErrCodeInvalidAddress,
		lnurl.ErrCodeUnsupportedDestination, lnurl.ErrCodeMissingDestination:
		return "This seller's payment details look invalid."
	default:
		return "Could not create the invoice. Try again."
	}
}
