package navspy

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default tuning, matching the sticky header height and read zone the
// about pages were laid out against.
const (
	DefaultTopBuffer      = 50.0
	DefaultFallbackUnlock = time.Second
	DefaultSettleUnlock   = 150 * time.Millisecond
)

// Entry is one region's visibility as reported by the observation source.
type Entry struct {
	ID           string  `json:"id"`
	Intersecting bool    `json:"intersecting"`
	Top          float64 `json:"top"`
}

// Sink receives observation events.
type Sink interface {
	// Intersect delivers one batch of visibility changes.
	Intersect(batch []Entry)
	// Scrolled signals scroll activity.
	Scrolled()
}

// Subscription is a registration with a Source.
type Subscription interface {
	// Unsubscribe stops delivery. It is safe to call more than once.
	Unsubscribe()
}

// Source resolves anchors and delivers observation events for them.
type Source interface {
	// Lookup reports whether the layout currently has an anchor for id.
	Lookup(id string) bool
	// Subscribe registers sink for the given ids. The source may deliver
	// an initial batch before Subscribe returns.
	Subscribe(ids []string, sink Sink) Subscription
}

// State is the suppression state of a Tracker.
type State int

const (
	// StateIdle means observation batches update the active id.
	StateIdle State = iota
	// StateSuppressed means a manual selection is in effect and
	// observation batches are ignored.
	StateSuppressed
)

func (s State) String() string {
	if s == StateSuppressed {
		return "suppressed"
	}
	return "idle"
}

// ActiveState is a point-in-time copy of the tracker state.
type ActiveState struct {
	ActiveID      string    `json:"active_id"`
	Suppressed    bool      `json:"suppressed"`
	SuppressUntil time.Time `json:"suppress_until,omitempty"`
}

// Options tunes a Tracker. Zero values take the defaults.
type Options struct {
	// TopBuffer is how far below the read zone's top edge a heading must
	// sit to be preferred as "just scrolled to".
	TopBuffer float64
	// FallbackUnlock lifts suppression when no scroll follows a selection.
	FallbackUnlock time.Duration
	// SettleUnlock lifts suppression once scrolling has been quiet this long.
	SettleUnlock time.Duration
	// InitialDelay postpones anchor lookup so the first layout can settle.
	// The lookup then runs on the clock's goroutine; sources must order
	// its initial batch against later ones, as Layout does.
	InitialDelay time.Duration
	Clock        Clock
	Logger       *zap.Logger
	// OnChange is called with the new active id after every change, in
	// change order. It may read tracker state but must not call Intersect
	// or Select.
	OnChange func(id string)
}

func (o *Options) defaults() {
	if o.TopBuffer <= 0 {
		o.TopBuffer = DefaultTopBuffer
	}
	if o.FallbackUnlock <= 0 {
		o.FallbackUnlock = DefaultFallbackUnlock
	}
	if o.SettleUnlock <= 0 {
		o.SettleUnlock = DefaultSettleUnlock
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Tracker maintains the active section for one page view.
type Tracker struct {
	opts  Options
	items []NavItem
	order map[string]int

	// notifyMu is held from a state change through its OnChange call so
	// notifications leave in the order the changes were made.
	notifyMu sync.Mutex

	mu            sync.Mutex
	active        string
	state         State
	suppressUntil time.Time
	snapshot      map[string]Entry
	observed      []string
	sub           Subscription
	closed        bool

	// epoch increments on every selection; timers from older selections
	// are ignored when they fire.
	epoch     uint64
	settleSeq uint64
	initTimer Timer
	fallback  Timer
	settle    Timer
}

// New creates a Tracker for the given navigation tree.
func New(items []NavItem, opts Options) (*Tracker, error) {
	if err := Validate(items); err != nil {
		return nil, err
	}
	opts.defaults()

	order := make(map[string]int)
	for i, id := range Flatten(items) {
		order[id] = i
	}
	return &Tracker{
		opts:     opts,
		items:    items,
		order:    order,
		snapshot: make(map[string]Entry),
	}, nil
}

// Items returns the navigation tree the tracker was built with.
func (t *Tracker) Items() []NavItem { return t.items }

// Start registers the tracker with src. With an InitialDelay the lookup
// happens once the delay elapses; Close before then cancels it.
func (t *Tracker) Start(src Source) {
	t.mu.Lock()
	if t.closed || t.initTimer != nil || t.sub != nil {
		t.mu.Unlock()
		return
	}
	if t.opts.InitialDelay > 0 {
		t.initTimer = t.opts.Clock.AfterFunc(t.opts.InitialDelay, func() { t.attach(src) })
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.attach(src)
}

func (t *Tracker) attach(src Source) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.initTimer = nil
	t.mu.Unlock()

	var ids []string
	for id := range t.order {
		if src.Lookup(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return t.order[ids[i]] < t.order[ids[j]] })

	// Subscribe outside the lock: sources may deliver the first batch
	// synchronously.
	sub := src.Subscribe(ids, t)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	t.sub = sub
	t.observed = ids
	t.mu.Unlock()

	t.opts.Logger.Debug("navspy attached",
		zap.Int("observed", len(ids)),
		zap.Int("items", len(t.order)))
}

// Observed returns the ids that had an anchor when the tracker attached.
func (t *Tracker) Observed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.observed...)
}

// Intersect applies a batch of visibility changes. It implements Sink.
func (t *Tracker) Intersect(batch []Entry) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	for _, e := range batch {
		if _, known := t.order[e.ID]; !known {
			continue
		}
		t.snapshot[e.ID] = e
	}
	if t.state == StateSuppressed {
		t.mu.Unlock()
		return
	}

	candidate, ok := Choose(t.intersecting(), t.opts.TopBuffer)
	changed := ok && candidate != t.active
	if changed {
		t.active = candidate
	}
	t.mu.Unlock()

	if changed {
		t.notify(candidate)
	}
}

// intersecting returns the snapshot entries currently intersecting, in
// document order. Callers hold t.mu.
func (t *Tracker) intersecting() []Entry {
	var out []Entry
	for _, e := range t.snapshot {
		if e.Intersecting {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return t.order[out[i].ID] < t.order[out[j].ID] })
	return out
}

// Choose picks the active candidate from intersecting entries. Entries
// are ordered top to bottom by their top offset (document order breaks
// ties); the first whose top lies below buffer wins, otherwise the one
// with the greatest top offset, which is the section being scrolled
// through. For well-formed pages that is also the last in document order.
func Choose(candidates []Entry, buffer float64) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	sorted := append([]Entry(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Top < sorted[j].Top })
	for _, e := range sorted {
		if e.Top > buffer {
			return e.ID, true
		}
	}
	return sorted[len(sorted)-1].ID, true
}

// Scrolled records scroll activity. While suppressed it re-arms the
// settle timer so suppression lifts shortly after scrolling stops. It
// implements Sink.
func (t *Tracker) Scrolled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.state != StateSuppressed {
		return
	}
	t.armSettle()
}

// Select makes id active immediately and suppresses observation until
// scrolling settles or the fallback window passes.
func (t *Tracker) Select(id string) error {
	if _, ok := t.order[id]; !ok {
		return ErrUnknownItem
	}

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	changed := t.active != id
	t.active = id
	t.state = StateSuppressed
	t.epoch++

	stop(&t.settle)
	stop(&t.fallback)
	epoch := t.epoch
	t.suppressUntil = t.opts.Clock.Now().Add(t.opts.FallbackUnlock)
	t.fallback = t.opts.Clock.AfterFunc(t.opts.FallbackUnlock, func() { t.release(epoch, 0) })
	t.mu.Unlock()

	if changed {
		t.notify(id)
	}
	return nil
}

// armSettle cancels any pending settle timer and starts a new one.
// Callers hold t.mu.
func (t *Tracker) armSettle() {
	stop(&t.settle)
	t.settleSeq++
	epoch, seq := t.epoch, t.settleSeq
	t.suppressUntil = t.opts.Clock.Now().Add(t.opts.SettleUnlock)
	t.settle = t.opts.Clock.AfterFunc(t.opts.SettleUnlock, func() { t.release(epoch, seq) })
}

// release lifts suppression. seq is zero for the fallback timer. Stale
// or repeated firings are ignored.
func (t *Tracker) release(epoch, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || t.state != StateSuppressed || epoch != t.epoch {
		return
	}
	if seq != 0 && seq != t.settleSeq {
		return
	}
	stop(&t.settle)
	stop(&t.fallback)
	t.state = StateIdle
	t.suppressUntil = time.Time{}
}

func stop(timer *Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}

func (t *Tracker) notify(id string) {
	t.opts.Logger.Debug("navspy active section", zap.String("id", id))
	if t.opts.OnChange != nil {
		t.opts.OnChange(id)
	}
}

// ActiveID returns the current active id, or "" if none has been chosen.
func (t *Tracker) ActiveID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// SuppressionState returns whether observation is currently muted.
func (t *Tracker) SuppressionState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Snapshot returns a copy of the active state.
func (t *Tracker) Snapshot() ActiveState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ActiveState{
		ActiveID:      t.active,
		Suppressed:    t.state == StateSuppressed,
		SuppressUntil: t.suppressUntil,
	}
}

// IsActive reports whether the nav item id renders as active.
func (t *Tracker) IsActive(id string) bool {
	return IsActive(t.items, t.ActiveID(), id)
}

// Close unsubscribes from the source and cancels every pending timer.
// It is safe to call more than once and before Start has completed.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	stop(&t.initTimer)
	stop(&t.settle)
	stop(&t.fallback)
	t.state = StateIdle
	t.suppressUntil = time.Time{}
	sub := t.sub
	t.sub = nil
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
