package controller

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/cinemate/server/internal/service/room"
)

// startSyncLoop runs the clock-reconciliation loop for a follower
// connection. Idempotent per session: a promoted-then-demoted leader keeps
// its original loop, ticks are suppressed while it holds leadership.
func (c *controller) startSyncLoop(ctx context.Context, conn *websocket.Conn, sess *wsSession) {
	if sess.loopCancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sess.loopCancel = cancel

	go c.runSyncLoop(loopCtx, conn, sess.roomId, sess.memberId)
}

// runSyncLoop re-resolves the room and the member by id on every tick
// rather than holding references that may outlive them. The loop ends when
// its context is cancelled or when its subject vanishes; a tick racing a
// removal just observes the latter and stops.
func (c *controller) runSyncLoop(ctx context.Context, conn *websocket.Conn, roomId, memberId string) {
	ticker := c.clock.NewTicker(c.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tick, err := c.roomService.GetSyncTick(ctx, &room.GetSyncTickParams{
				RoomId:   roomId,
				MemberId: memberId,
			})
			if err != nil {
				c.logger.DebugContext(ctx, "stopping sync loop", "room_id", roomId, "error", err)
				return
			}

			if tick.IsLeader {
				continue
			}

			if err := c.writeToConn(ctx, conn, &Output{
				Type: "sync-tick",
				Payload: map[string]any{
					"serverTime":        tick.ServerTime.UnixMilli(),
					"correctedPosition": tick.CorrectedPosition,
					"isPlaying":         tick.IsPlaying,
					"sequenceNumber":    tick.Sequence,
				},
			}); err != nil {
				c.logger.DebugContext(ctx, "failed to write sync tick", "error", err)
				return
			}
		}
	}
}
