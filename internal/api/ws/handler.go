package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/utils"
)

const writeWait = 10 * time.Second

// Dispatcher resolves and invokes interface methods
type Dispatcher interface {
	Dispatch(ctx context.Context, cc *types.CallContext, name, version, method string, args interface{}) (interface{}, error)
}

// Message is a client frame
type Message struct {
	Type      string      `json:"type"`
	ID        string      `json:"id,omitempty"`
	Interface string      `json:"interface,omitempty"`
	Version   string      `json:"version,omitempty"`
	Method    string      `json:"method,omitempty"`
	Args      interface{} `json:"args,omitempty"`
}

// Reply is a server frame
type Reply struct {
	Type   string       `json:"type"`
	ID     string       `json:"id,omitempty"`
	Result interface{}  `json:"result,omitempty"`
	Error  *types.Error `json:"error,omitempty"`
	Name   string       `json:"name,omitempty"`
	Data   interface{}  `json:"data,omitempty"`
}

// Handler manages WebSocket connections
type Handler struct {
	dispatcher Dispatcher
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	log        *logging.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates a new WebSocket handler; tracer may be nil.
func NewHandler(dispatcher Dispatcher, metrics *monitoring.Metrics, tracer *tracing.Tracer, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{
		dispatcher: dispatcher,
		metrics:    metrics,
		tracer:     tracer,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// connection serialises writes; it is the event sink of every call made on it
type connection struct {
	id      string
	ws      *websocket.Conn
	metrics *monitoring.Metrics
	mu      sync.Mutex
}

func (c *connection) send(r Reply) error {
	data, err := sonic.Marshal(r)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out", r.Type)
	return nil
}

// Emit implements types.EventSink
func (c *connection) Emit(name string, data interface{}) error {
	return c.send(Reply{Type: "event", Name: name, Data: data})
}

// HandleConnection upgrades the request and serves RPC frames until the
// client disconnects. Calls run concurrently; replies carry the call id.
func (h *Handler) HandleConnection(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()
	ws.SetReadLimit(utils.MaxMessageSize)

	conn := &connection{id: id.NewConnectionID().String(), ws: ws, metrics: h.metrics}
	ip := c.ClientIP()
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	ctx, cancel := context.WithCancel(c.Request.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	h.log.Debug("WebSocket connected", zap.String("connection", conn.id), zap.String("ip", ip))

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("WebSocket read error", zap.String("connection", conn.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			_ = conn.send(Reply{Type: "error", Error: types.NewError(types.CodeParams, "malformed frame")})
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case "call":
			wg.Add(1)
			go func(msg Message) {
				defer wg.Done()
				h.call(ctx, conn, ip, msg)
			}(msg)
		case "ping":
			_ = conn.send(Reply{Type: "pong", ID: msg.ID})
		default:
			_ = conn.send(Reply{Type: "error", ID: msg.ID, Error: types.NewError(types.CodeParams, "unknown message type %q", msg.Type)})
		}
	}
}

func (h *Handler) call(ctx context.Context, conn *connection, ip string, msg Message) {
	for field, value := range map[string]string{"interface": msg.Interface, "method": msg.Method} {
		if err := utils.ValidateIdentifier(value, field); err != nil {
			_ = conn.send(Reply{Type: "error", ID: msg.ID, Error: types.NewError(types.CodeParams, "%s", err.Error())})
			return
		}
	}

	var span *tracing.Span
	if h.tracer != nil {
		span, ctx = h.tracer.StartSpan(ctx, "ws.call "+msg.Interface+"."+msg.Method)
		span.SetTag("connection", conn.id)
	}

	cc := types.NewCallContext(&types.Client{
		CallID: id.NewCallID().String(),
		IP:     ip,
		Events: conn,
	})
	result, err := h.dispatcher.Dispatch(ctx, cc, msg.Interface, msg.Version, msg.Method, msg.Args)
	reply := Reply{Type: "result", ID: msg.ID, Result: result}
	if err != nil {
		reply = Reply{Type: "error", ID: msg.ID, Error: types.AsError(err)}
	}

	if span != nil {
		span.SetTag("call_id", cc.Client.CallID)
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		h.tracer.Submit(span)
	}

	if err := conn.send(reply); err != nil {
		h.log.Debug("Failed to deliver reply", zap.String("connection", conn.id), zap.Error(err))
	}
}
