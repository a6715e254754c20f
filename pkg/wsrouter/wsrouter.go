package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

type WSRouter struct {
	routes         map[string]HandlerFunc
	unknownHandler HandlerFunc
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// HandleUnknown registers the handler invoked for message types without a
// route.
func (r *WSRouter) HandleUnknown(handler HandlerFunc) {
	r.unknownHandler = handler
}

// ServeConn reads messages from the connection until it fails and
// dispatches each one by type. A handler error terminates the connection;
// handlers are expected to recover protocol-level errors themselves.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			if r.unknownHandler == nil {
				continue
			}
			handler = r.unknownHandler
		}

		if err := handler(withMessageType(ctx, msg.Type), conn, msg.Payload); err != nil {
			return err
		}
	}
}
