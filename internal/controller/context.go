package controller

import "context"

type contextKey int

const sessionCtxKey contextKey = iota

// wsSession binds one websocket connection to one participant. Its fields
// are touched only by the connection's reader goroutine, so no locking is
// needed.
type wsSession struct {
	memberId   string
	roomId     string
	username   string
	loopCancel context.CancelFunc
}

func (c *controller) getSessionFromCtx(ctx context.Context) *wsSession {
	sess, _ := ctx.Value(sessionCtxKey).(*wsSession)
	return sess
}
