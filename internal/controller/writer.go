package controller

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (c *controller) writeToConn(ctx context.Context, conn *websocket.Conn, output *Output) error {
	mu, _ := c.writeMus.LoadOrStore(conn, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	return conn.WriteJSON(output)
}

// broadcast writes the output to every connection, dropping the ones that
// fail; a failed write means the peer is disconnecting and its own
// disconnect path will clean up.
func (c *controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) {
	for _, conn := range conns {
		if err := c.writeToConn(ctx, conn, output); err != nil {
			c.logger.DebugContext(ctx, "failed to write to conn", "error", err)
		}
	}
}

func (c *controller) writeError(ctx context.Context, conn *websocket.Conn, message string) {
	if err := c.writeToConn(ctx, conn, &Output{
		Type:    "error",
		Payload: map[string]any{"message": message},
	}); err != nil {
		c.logger.DebugContext(ctx, "failed to write error", "error", err)
	}
}

func (c *controller) releaseConn(conn *websocket.Conn) {
	c.writeMus.Delete(conn)
}
