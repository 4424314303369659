package navspy

import (
	"sync"
)

// Default read zone: skip the sticky header and the bottom 70% of the
// viewport, so sections count only once they are well into view.
const (
	DefaultZoneTop    = 100.0
	DefaultZoneBottom = 0.70
)

// ReadZone is the band of the viewport in which a region counts as
// intersecting. TopMargin is in pixels from the viewport top;
// BottomFraction is the share of the viewport height excluded at the
// bottom.
type ReadZone struct {
	TopMargin      float64 `json:"top_margin" yaml:"top_margin" koanf:"top_margin"`
	BottomFraction float64 `json:"bottom_fraction" yaml:"bottom_fraction" koanf:"bottom_fraction"`
}

// DefaultReadZone returns the zone the about pages are tuned for.
func DefaultReadZone() ReadZone {
	return ReadZone{TopMargin: DefaultZoneTop, BottomFraction: DefaultZoneBottom}
}

// Bounds returns the zone's top and bottom edges for a viewport height,
// in viewport coordinates.
func (z ReadZone) Bounds(viewportHeight float64) (top, bottom float64) {
	return z.TopMargin, viewportHeight - viewportHeight*z.BottomFraction
}

// Intersects reports whether r overlaps the zone. A collapsed zone
// intersects nothing.
func (z ReadZone) Intersects(r Rect, viewportHeight float64) bool {
	top, bottom := z.Bounds(viewportHeight)
	if bottom <= top {
		return false
	}
	return r.Top < bottom && r.Bottom > top
}

// Rect is an anchor's vertical extent relative to the viewport top.
type Rect struct {
	ID     string  `json:"id"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Measurement is one layout report: the viewport height and the rects of
// every anchor currently in the document.
type Measurement struct {
	ViewportHeight float64 `json:"viewport_height"`
	Anchors        []Rect  `json:"anchors"`
}

// Layout is a Source fed with measurements. Like a browser intersection
// observer it reports every observed region on subscription and
// afterwards only regions whose intersection state changed.
type Layout struct {
	zone ReadZone

	// deliverMu orders batches: each one is computed and handed to its
	// sinks before the next is computed.
	deliverMu sync.Mutex

	mu     sync.Mutex
	rects  map[string]Rect
	height float64
	subs   map[*layoutSub]struct{}
}

type layoutSub struct {
	layout *Layout
	ids    []string
	sink   Sink
	last   map[string]bool
}

// NewLayout creates an empty Layout using zone.
func NewLayout(zone ReadZone) *Layout {
	return &Layout{
		zone:  zone,
		rects: make(map[string]Rect),
		subs:  make(map[*layoutSub]struct{}),
	}
}

// Lookup reports whether the last measurement contained id.
func (l *Layout) Lookup(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rects[id]
	return ok
}

// Subscribe registers sink for ids and delivers the initial batch.
func (l *Layout) Subscribe(ids []string, sink Sink) Subscription {
	s := &layoutSub{
		layout: l,
		ids:    append([]string(nil), ids...),
		sink:   sink,
		last:   make(map[string]bool),
	}
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	l.subs[s] = struct{}{}
	batch := l.diff(s)
	l.mu.Unlock()

	if len(batch) > 0 {
		sink.Intersect(batch)
	}
	return s
}

// Unsubscribe removes the registration.
func (s *layoutSub) Unsubscribe() {
	l := s.layout
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subs, s)
}

// Measure replaces the layout and delivers a batch of changed entries to
// every subscriber.
func (l *Layout) Measure(m Measurement) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	l.height = m.ViewportHeight
	l.rects = make(map[string]Rect, len(m.Anchors))
	for _, r := range m.Anchors {
		if r.ID != "" {
			l.rects[r.ID] = r
		}
	}

	type delivery struct {
		sink  Sink
		batch []Entry
	}
	var out []delivery
	for s := range l.subs {
		if batch := l.diff(s); len(batch) > 0 {
			out = append(out, delivery{sink: s.sink, batch: batch})
		}
	}
	l.mu.Unlock()

	for _, d := range out {
		d.sink.Intersect(d.batch)
	}
}

// Scroll forwards scroll activity to every subscriber.
func (l *Layout) Scroll() {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	sinks := make([]Sink, 0, len(l.subs))
	for s := range l.subs {
		sinks = append(sinks, s.sink)
	}
	l.mu.Unlock()

	for _, sink := range sinks {
		sink.Scrolled()
	}
}

// diff computes the entries for s whose intersection state is new or
// changed, in subscription order. Callers hold l.mu.
func (l *Layout) diff(s *layoutSub) []Entry {
	var batch []Entry
	for _, id := range s.ids {
		r, ok := l.rects[id]
		if !ok {
			continue
		}
		in := l.zone.Intersects(r, l.height)
		if prev, seen := s.last[id]; seen && prev == in {
			continue
		}
		s.last[id] = in
		batch = append(batch, Entry{ID: id, Intersecting: in, Top: r.Top})
	}
	return batch
}
