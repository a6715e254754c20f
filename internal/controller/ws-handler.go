package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cinemate/server/internal/domain"
	"github.com/cinemate/server/internal/service/room"
	"github.com/cinemate/server/pkg/ctxlogger"
	"github.com/cinemate/server/pkg/wsrouter"
)

// close code sent to a kicked participant
const kickCloseCode = 4001

func (c *controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Handle("join-room", c.handleJoinRoom)
	mux.Handle("video-command", c.handleVideoCommand)
	mux.Handle("request-sync", c.handleRequestSync)
	mux.Handle("leader-heartbeat", c.handleLeaderHeartbeat)
	mux.Handle("transfer-leadership", c.handleTransferLeadership)
	mux.Handle("kick-user", c.handleKickUser)
	mux.Handle("change-username", c.handleChangeUsername)
	mux.Handle("send-chat-message", c.handleSendChatMessage)
	mux.HandleUnknown(c.handleUnknown)

	return mux
}

func (c *controller) webSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	memberId := uuid.NewString()
	sess := &wsSession{
		memberId: memberId,
		username: "User_" + memberId[:5],
	}

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("member_id", memberId))
	ctx, cancel := context.WithCancel(context.WithValue(ctx, sessionCtxKey, sess))
	defer cancel()
	defer c.releaseConn(conn)
	defer c.disconnect(ctx, sess)

	c.logger.InfoContext(ctx, "client connected")

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

// disconnect runs when the connection's read loop ends for any reason. A
// member that never joined a room, or whose room vanished in a concurrent
// race, is a benign no-op.
func (c *controller) disconnect(ctx context.Context, sess *wsSession) {
	defer c.logger.InfoContext(ctx, "client disconnected")

	if sess.loopCancel != nil {
		sess.loopCancel()
	}

	if sess.roomId == "" {
		return
	}

	resp, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{MemberId: sess.memberId})
	if err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) && !errors.Is(err, domain.ErrMemberNotFound) {
			c.logger.WarnContext(ctx, "failed to disconnect member", "error", err)
		}
		return
	}

	if resp.IsRoomDeleted {
		c.logger.InfoContext(ctx, "room deleted", "room_id", sess.roomId)
		return
	}

	if resp.NewLeader != nil {
		c.broadcast(ctx, resp.Conns, &Output{
			Type: "leadership-transferred",
			Payload: map[string]any{
				"newLeaderId":   resp.NewLeader.Id,
				"newLeaderName": resp.NewLeader.Username,
				"participants":  resp.Memberlist,
			},
		})
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "participant-left",
		Payload: map[string]any{
			"userId":       resp.LeftMember.Id,
			"username":     resp.LeftMember.Username,
			"participants": resp.Memberlist,
		},
	})
}

type playbackPayload struct {
	Media           *domain.MediaRef `json:"media"`
	IsPlaying       bool             `json:"isPlaying"`
	PositionSeconds float64          `json:"positionSeconds"`
	LastUpdateAt    int64            `json:"lastUpdateAt"`
	SequenceNumber  uint64           `json:"sequenceNumber"`
}

func newPlaybackPayload(p domain.PlaybackState) playbackPayload {
	return playbackPayload{
		Media:           p.Media,
		IsPlaying:       p.IsPlaying,
		PositionSeconds: p.PositionSeconds,
		LastUpdateAt:    p.UpdatedAt.UnixMilli(),
		SequenceNumber:  p.Sequence,
	}
}

// unmarshalInput decodes and validates a payload, replying with an error
// message on failure.
func (c *controller) unmarshalInput(ctx context.Context, conn *websocket.Conn, payload json.RawMessage, dst any) bool {
	if err := json.Unmarshal(payload, dst); err != nil {
		c.logger.DebugContext(ctx, "failed to unmarshal payload", "error", err)
		c.writeError(ctx, conn, "malformed payload")
		return false
	}

	if validationErrors, ok := c.validate.Validate(dst); !ok {
		c.logger.DebugContext(ctx, "validation failed", "errors", validationErrors)
		c.writeError(ctx, conn, validationErrors[0].Message)
		return false
	}

	return true
}

// writeServiceError maps a service error to a protocol error reply.
// Vanished rooms and members are expected under concurrent disconnect and
// produce no reply at all.
func (c *controller) writeServiceError(ctx context.Context, conn *websocket.Conn, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, domain.ErrMemberNotFound):
		c.logger.DebugContext(ctx, "ignoring message for vanished room or member", "error", err)
	case errors.Is(err, domain.ErrNotLeader):
		c.writeError(ctx, conn, "only the leader can perform this action")
	case errors.Is(err, domain.ErrInvalidCommand):
		c.writeError(ctx, conn, "invalid command")
	case errors.Is(err, domain.ErrRoomIsFull):
		c.writeError(ctx, conn, "room is full")
	default:
		c.logger.WarnContext(ctx, "unexpected service error", "error", err)
		c.writeError(ctx, conn, "internal error")
	}
}

type JoinRoomInput struct {
	RoomId      string `json:"roomId" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"omitempty,max=32"`
}

func (c *controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input JoinRoomInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	if sess.roomId != "" {
		c.writeError(ctx, conn, "already joined a room")
		return nil
	}

	username := sess.username
	if input.DisplayName != "" {
		username = input.DisplayName
	}

	resp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		RoomId:   input.RoomId,
		MemberId: sess.memberId,
		Username: username,
		Conn:     conn,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to join room", "error", err)
		c.writeServiceError(ctx, conn, err)
		return nil
	}

	sess.roomId = input.RoomId
	sess.username = username

	c.logger.InfoContext(ctx, "joined room", "room_id", input.RoomId, "role", resp.JoinedMember.Role)

	if err := c.writeToConn(ctx, conn, &Output{
		Type: "room-info",
		Payload: map[string]any{
			"roomId":       input.RoomId,
			"yourId":       sess.memberId,
			"yourRole":     resp.JoinedMember.Role,
			"participants": resp.Memberlist,
			"playback":     newPlaybackPayload(resp.Playback),
		},
	}); err != nil {
		return err
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "participant-joined",
		Payload: map[string]any{
			"joined":       resp.JoinedMember,
			"participants": resp.Memberlist,
		},
	})

	// the leader is authoritative and gets no reconciliation loop
	if resp.JoinedMember.Role == domain.RoleViewer {
		c.startSyncLoop(ctx, conn, sess)
	}

	return nil
}

type VideoCommandInput struct {
	Action string   `json:"action" validate:"required,oneof=load play pause seek"`
	Url    string   `json:"url" validate:"omitempty,max=2048"`
	Title  string   `json:"title" validate:"omitempty,max=256"`
	Kind   string   `json:"kind" validate:"omitempty,oneof=direct hls embed"`
	Time   *float64 `json:"time"`
}

func (c *controller) handleVideoCommand(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input VideoCommandInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	cmd := domain.Command{
		Action: domain.CommandAction(input.Action),
		Time:   input.Time,
	}
	if cmd.Action == domain.CommandLoad {
		cmd.Media = &domain.MediaRef{
			Url:   input.Url,
			Title: input.Title,
			Kind:  domain.MediaKind(input.Kind),
		}
	}

	resp, err := c.roomService.ApplyCommand(ctx, &room.ApplyCommandParams{
		SenderId: sess.memberId,
		Command:  cmd,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to apply command", "error", err)
		c.writeServiceError(ctx, conn, err)
		return nil
	}

	serverTime := c.clock.Now().UnixMilli()

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "video-sync",
		Payload: map[string]any{
			"action":     input.Action,
			"playback":   newPlaybackPayload(resp.Playback),
			"serverTime": serverTime,
		},
	})

	// the leader already applied the command locally and only needs the
	// sequence number to detect its commands being overtaken
	return c.writeToConn(ctx, conn, &Output{
		Type: "command-ack",
		Payload: map[string]any{
			"sequenceNumber": resp.Playback.Sequence,
			"serverTime":     serverTime,
		},
	})
}

type RequestSyncInput struct {
	ClientSentAt int64 `json:"clientSentAt" validate:"required"`
}

func (c *controller) handleRequestSync(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input RequestSyncInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	resp, err := c.roomService.RequestSync(ctx, &room.RequestSyncParams{
		MemberId:       sess.memberId,
		ClientSentAtMs: input.ClientSentAt,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to handle sync request", "error", err)
		c.writeServiceError(ctx, conn, err)
		return nil
	}

	return c.writeToConn(ctx, conn, &Output{
		Type: "sync-response",
		Payload: map[string]any{
			"correctedPosition": resp.CorrectedPosition,
			"isPlaying":         resp.IsPlaying,
			"sequenceNumber":    resp.Sequence,
			"serverTime":        resp.ServerTime.UnixMilli(),
			"leaderLatency":     resp.LeaderLatencyMs,
		},
	})
}

type LeaderHeartbeatInput struct {
	ClientSentAt int64 `json:"clientSentAt" validate:"required"`
}

func (c *controller) handleLeaderHeartbeat(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input LeaderHeartbeatInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	// heartbeats from non-leaders are dropped, not answered
	if _, err := c.roomService.LeaderHeartbeat(ctx, &room.LeaderHeartbeatParams{
		MemberId:       sess.memberId,
		ClientSentAtMs: input.ClientSentAt,
	}); err != nil {
		c.logger.DebugContext(ctx, "dropping leader heartbeat", "error", err)
	}

	return nil
}

type TransferLeadershipInput struct {
	TargetId string `json:"targetId" validate:"required"`
}

func (c *controller) handleTransferLeadership(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input TransferLeadershipInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	resp, err := c.roomService.TransferLeadership(ctx, &room.TransferLeadershipParams{
		SenderId: sess.memberId,
		TargetId: input.TargetId,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to transfer leadership", "error", err)
		c.writeServiceError(ctx, conn, err)
		return nil
	}

	c.logger.InfoContext(ctx, "leadership transferred", "new_leader_id", resp.NewLeader.Id)

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "leadership-transferred",
		Payload: map[string]any{
			"newLeaderId":   resp.NewLeader.Id,
			"newLeaderName": resp.NewLeader.Username,
			"participants":  resp.Memberlist,
		},
	})

	// the sender is a follower now and needs corrections
	c.startSyncLoop(ctx, conn, sess)

	return nil
}

type KickUserInput struct {
	TargetId string `json:"targetId" validate:"required"`
}

func (c *controller) handleKickUser(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input KickUserInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	resp, err := c.roomService.KickMember(ctx, &room.KickMemberParams{
		SenderId: sess.memberId,
		TargetId: input.TargetId,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to kick member", "error", err)
		c.writeServiceError(ctx, conn, err)
		return nil
	}

	c.logger.InfoContext(ctx, "kicking member", "target_id", resp.KickedMember.Id)

	// the removal itself happens through the target's disconnect path
	resp.KickedConn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(kickCloseCode, "kicked"), time.Now().Add(5*time.Second))
	resp.KickedConn.Close()

	return nil
}

type ChangeUsernameInput struct {
	NewName string `json:"newName" validate:"required,max=32"`
}

func (c *controller) handleChangeUsername(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input ChangeUsernameInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	resp, err := c.roomService.UpdateUsername(ctx, &room.UpdateUsernameParams{
		MemberId: sess.memberId,
		Username: input.NewName,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to change username", "error", err)
		c.writeServiceError(ctx, conn, err)
		return nil
	}

	sess.username = input.NewName

	// roster refresh, same event the join path uses
	c.broadcast(ctx, resp.Conns, &Output{
		Type: "participant-joined",
		Payload: map[string]any{
			"participants": resp.Memberlist,
		},
	})

	return nil
}

type SendChatMessageInput struct {
	Text string `json:"text" validate:"required,max=500"`
}

func (c *controller) handleSendChatMessage(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	sess := c.getSessionFromCtx(ctx)

	var input SendChatMessageInput
	if !c.unmarshalInput(ctx, conn, payload, &input) {
		return nil
	}

	resp, err := c.roomService.SendChatMessage(ctx, &room.SendChatMessageParams{
		MemberId: sess.memberId,
		Message:  input.Text,
	})
	if err != nil {
		c.logger.DebugContext(ctx, "failed to send chat message", "error", err)
		c.writeServiceError(ctx, conn, err)
		return nil
	}

	c.broadcast(ctx, resp.Conns, &Output{
		Type: "chat-message",
		Payload: map[string]any{
			"sender":     resp.Sender.Username,
			"senderId":   resp.Sender.Id,
			"text":       input.Text,
			"serverTime": resp.ServerTime.UnixMilli(),
		},
	})

	return nil
}

func (c *controller) handleUnknown(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	c.writeError(ctx, conn, "unknown message type: "+wsrouter.GetMessageTypeFromCtx(ctx))
	return nil
}
