package site

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ziadkadry99/folio/internal/content"
	"github.com/ziadkadry99/folio/internal/navspy"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// navRequest is the incoming WebSocket message format.
type navRequest struct {
	Type string `json:"type"` // "layout", "scroll" or "select"
	// ID is the selected nav item for "select".
	ID string `json:"id,omitempty"`
	// ViewportHeight and Anchors carry a measurement for "layout" and,
	// optionally, "scroll".
	ViewportHeight float64       `json:"viewport_height,omitempty"`
	Anchors        []navspy.Rect `json:"anchors,omitempty"`
	// ScrollY is the window scroll offset for "scroll".
	ScrollY float64 `json:"scroll_y,omitempty"`
}

// navResponse is the outgoing WebSocket message format.
type navResponse struct {
	Type string `json:"type"` // "active", "top_button" or "error"
	ID   string `json:"id,omitempty"`
	// ActiveIDs lists every sidebar entry to highlight for ID.
	ActiveIDs []string `json:"active_ids,omitempty"`
	Show      *bool    `json:"show,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// navSession is one browser tab's tracker session. Reads happen on the
// handler goroutine; writes may also come from tracker timers, so they
// are serialized.
type navSession struct {
	conn    *websocket.Conn
	page    string
	items   []navspy.NavItem
	layout  *navspy.Layout
	tracker *navspy.Tracker
	logger  *zap.Logger
	metrics Metrics

	topAfter float64
	started  bool
	topShown bool

	writeMu sync.Mutex
}

func (s *Site) handleNavSocket(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("page")
	items, ok := content.NavTreeFor(page)
	if !ok {
		http.Error(w, "unknown page", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("navspy: websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	label := page
	if label == "" {
		label = "about"
	}
	sess := &navSession{
		conn:     conn,
		page:     label,
		items:    items,
		layout:   navspy.NewLayout(s.cfg.NavSpy.ReadZone),
		logger:   s.logger.With(zap.String("page", label)),
		metrics:  s.metrics,
		topAfter: s.cfg.NavSpy.TopButtonAfter,
	}
	opts := s.cfg.NavSpy.Options()
	opts.Clock = s.clock
	opts.Logger = sess.logger
	opts.OnChange = sess.activeChanged
	sess.tracker, err = navspy.New(items, opts)
	if err != nil {
		sess.sendError("navigation unavailable")
		s.logger.Error("navspy: building tracker", zap.Error(err))
		return
	}

	s.metrics.NavSessionOpened()
	defer s.metrics.NavSessionClosed()
	defer sess.tracker.Close()

	sess.run()
}

func (n *navSession) run() {
	for {
		_, msg, err := n.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				n.logger.Debug("navspy: websocket read", zap.Error(err))
			}
			return
		}

		var req navRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			n.sendError("invalid message format")
			continue
		}

		switch req.Type {
		case "layout":
			n.measure(req)
			if !n.started {
				n.started = true
				n.tracker.Start(n.layout)
			}
		case "scroll":
			n.layout.Scroll()
			if len(req.Anchors) > 0 {
				n.measure(req)
			}
			n.updateTopButton(req.ScrollY)
		case "select":
			if err := n.tracker.Select(req.ID); err != nil {
				if errors.Is(err, navspy.ErrUnknownItem) {
					n.sendError("unknown section: " + req.ID)
					continue
				}
				n.sendError(err.Error())
			}
		default:
			n.sendError("unknown message type: " + req.Type)
		}
	}
}

func (n *navSession) measure(req navRequest) {
	n.layout.Measure(navspy.Measurement{ViewportHeight: req.ViewportHeight, Anchors: req.Anchors})
}

func (n *navSession) activeChanged(id string) {
	n.metrics.NavActiveChanged(n.page)
	n.send(navResponse{Type: "active", ID: id, ActiveIDs: ActiveIDs(n.items, id)})
}

func (n *navSession) updateTopButton(scrollY float64) {
	show := scrollY > n.topAfter
	if show == n.topShown {
		return
	}
	n.topShown = show
	n.send(navResponse{Type: "top_button", Show: &show})
}

func (n *navSession) send(resp navResponse) {
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	if err := n.conn.WriteJSON(resp); err != nil {
		n.logger.Debug("navspy: websocket write", zap.Error(err))
	}
}

func (n *navSession) sendError(message string) {
	n.send(navResponse{Type: "error", Message: message})
}
