package types

// EventSink delivers server-initiated events to a connected client
type EventSink interface {
	Emit(name string, data interface{}) error
}

// Client describes the connection a call arrived on.
type Client struct {
	CallID string    `json:"callId"`
	IP     string    `json:"ip"`
	Events EventSink `json:"-"`
}

// Emit sends an event to the client; clients without a sink drop events.
func (c *Client) Emit(name string, data interface{}) error {
	if c == nil || c.Events == nil {
		return nil
	}
	return c.Events.Emit(name, data)
}

// CallContext is the execution context passed to a resolved procedure.
type CallContext struct {
	Client   *Client                `json:"client"`
	Bindings map[string]interface{} `json:"-"`
}

// NewCallContext creates a context for a single call
func NewCallContext(client *Client) *CallContext {
	return &CallContext{
		Client:   client,
		Bindings: make(map[string]interface{}),
	}
}
