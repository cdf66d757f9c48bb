package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/apphost/internal/domain/api"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/apphost/internal/shared/types"
)

func newRegistry() *api.Registry {
	r := api.NewRegistry(nil)
	ver := api.NewVersion()
	ver.Methods["greet"] = &api.Procedure{
		Interface: "chat", Version: 1, Method: "greet",
		Invoke: func(ctx context.Context, cc *types.CallContext, args interface{}) (interface{}, error) {
			if err := cc.Client.Emit("typing", map[string]interface{}{"who": args}); err != nil {
				return nil, err
			}
			return "hello " + args.(string), nil
		},
	}
	r.Register("chat", 1, ver)
	return r
}

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", NewHandler(newRegistry(), monitoring.NewMetrics(), tracing.New("test", nil), nil).HandleConnection)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestCallWithEvent(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteJSON(Message{Type: "call", ID: "1", Interface: "chat", Method: "greet", Args: "ann"}))

	var event Reply
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "event", event.Type)
	assert.Equal(t, "typing", event.Name)

	var result Reply
	require.NoError(t, conn.ReadJSON(&result))
	assert.Equal(t, "result", result.Type)
	assert.Equal(t, "1", result.ID)
	assert.Equal(t, "hello ann", result.Result)
}

func TestCallErrors(t *testing.T) {
	conn := dial(t)

	tests := []struct {
		msg  Message
		code string
	}{
		{msg: Message{Type: "call", ID: "a", Interface: "chat", Method: "missing"}, code: types.CodeNotFound},
		{msg: Message{Type: "call", ID: "b", Interface: "chat", Version: "v2", Method: "greet"}, code: types.CodeVersion},
		{msg: Message{Type: "call", ID: "c", Interface: "", Method: "greet"}, code: types.CodeParams},
		{msg: Message{Type: "subscribe", ID: "d"}, code: types.CodeParams},
	}
	for _, tt := range tests {
		require.NoError(t, conn.WriteJSON(tt.msg))
		var reply Reply
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, "error", reply.Type, tt.msg.ID)
		assert.Equal(t, tt.msg.ID, reply.ID)
		require.NotNil(t, reply.Error, tt.msg.ID)
		assert.Equal(t, tt.code, reply.Error.Code, tt.msg.ID)
	}
}

func TestPingAndMalformedFrame(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping", ID: "p"}))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "pong", reply.Type)
	assert.Equal(t, "p", reply.ID)
}
