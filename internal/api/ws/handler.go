package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ottr/internal/console"
	"github.com/GriffinCanCode/ottr/internal/domain/session"
	"github.com/GriffinCanCode/ottr/internal/logging"
	"github.com/GriffinCanCode/ottr/internal/shared/utils"
)

// Path is where test pages connect.
const Path = "/_ottr/socket"

const (
	EventConsole = "console"
	EventTests   = "tests"
	EventDone    = "done"
	EventFail    = "fail"
	EventPing    = "ping"
)

// Event is a message posted by a test page. Args depend on Type:
//   - console: the console method followed by the logged values
//   - tests: one object mapping test names to their declared state
//   - fail: an optional reason
type Event struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Test    string `json:"test,omitempty"`
	Args    []any  `json:"args,omitempty"`
}

// Metrics is what the handler reports about the socket.
type Metrics interface {
	IncWSConnections()
	DecWSConnections()
	RecordWSMessage(direction, msgType string)
	RecordConsoleMessage(level string)
	SetSessionsActive(count int)
}

var upgrader = websocket.Upgrader{
	// Test pages are served from the proxied application's origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler feeds test page events into the session store.
type Handler struct {
	store   *session.Store
	console console.Console
	metrics Metrics
	logger  *logging.Logger
}

// NewHandler creates a handler. Console output of test pages is printed to
// out after it has been recorded in the store; metrics may be nil.
func NewHandler(store *session.Store, out console.Console, metrics Metrics, logger *logging.Logger) *Handler {
	if out == nil {
		out = console.Discard
	}
	return &Handler{
		store:   store,
		console: out,
		metrics: metrics,
		logger:  logging.OrNop(logger).Named("ws"),
	}
}

// HandleConnection upgrades the request and processes events until the page
// disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		if h.metrics != nil {
			h.metrics.RecordWSMessage("in", ev.Type)
		}

		if ev.Type == EventPing {
			h.send(conn, map[string]any{"type": "pong"})
			continue
		}
		if err := h.Handle(ev); err != nil {
			h.send(conn, map[string]any{
				"type":      "error",
				"message":   err.Error(),
				"timestamp": time.Now().Unix(),
			})
		}
	}
}

// Handle applies one event to the session store.
func (h *Handler) Handle(ev Event) error {
	if ev.Session == "" {
		return fmt.Errorf("%s event without a session", ev.Type)
	}
	if err := utils.ValidateID(ev.Session, "session", true); err != nil {
		return err
	}
	if err := utils.ValidateName(ev.Test, "test", false); err != nil {
		return err
	}
	defer h.updateActive()

	switch ev.Type {
	case EventConsole:
		h.handleConsole(ev)
	case EventTests:
		tests, err := decodeTests(ev.Args)
		if err != nil {
			return err
		}
		h.store.SetTests(ev.Session, tests)
	case EventDone:
		h.store.Done(ev.Session, ev.Test)
	case EventFail:
		var reason string
		if len(ev.Args) > 0 && ev.Args[0] != nil {
			reason = console.Format(ev.Args[0])
		}
		h.store.Fail(ev.Session, ev.Test, reason)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

// handleConsole records a console call as test output before printing it.
func (h *Handler) handleConsole(ev Event) {
	level := console.LevelLog
	args := ev.Args
	if len(args) > 0 {
		if method, ok := args[0].(string); ok {
			level = console.ParseLevel(method)
			args = args[1:]
		}
	}
	if h.metrics != nil {
		h.metrics.RecordConsoleMessage(string(level))
	}

	tap := console.NewTap(h.console, console.SinkFunc(func(_ console.Level, args ...any) error {
		if ev.Test != "" {
			h.store.AppendOutput(ev.Session, ev.Test, console.Format(args...))
		}
		return nil
	}))
	tap.Log(level, args...)
}

func (h *Handler) updateActive() {
	if h.metrics != nil {
		h.metrics.SetSessionsActive(h.store.Active())
	}
}

func (h *Handler) send(conn *websocket.Conn, data any) {
	if err := conn.WriteJSON(data); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
		return
	}
	if h.metrics != nil {
		if m, ok := data.(map[string]any); ok {
			h.metrics.RecordWSMessage("out", fmt.Sprint(m["type"]))
		}
	}
}

func decodeTests(args []any) (map[string]session.Test, error) {
	if len(args) == 0 {
		return map[string]session.Test{}, nil
	}
	raw, err := sonic.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("encode tests: %w", err)
	}
	var tests map[string]session.Test
	if err := sonic.Unmarshal(raw, &tests); err != nil {
		return nil, fmt.Errorf("decode tests: %w", err)
	}
	return tests, nil
}
