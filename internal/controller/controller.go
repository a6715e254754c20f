package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/cinemate/server/internal/domain"
	"github.com/cinemate/server/internal/service/room"
	"github.com/cinemate/server/pkg/validator"
	"github.com/cinemate/server/pkg/wsrouter"
)

type iRoomService interface {
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	ApplyCommand(context.Context, *room.ApplyCommandParams) (room.ApplyCommandResponse, error)
	TransferLeadership(context.Context, *room.TransferLeadershipParams) (room.TransferLeadershipResponse, error)
	KickMember(context.Context, *room.KickMemberParams) (room.KickMemberResponse, error)
	RequestSync(context.Context, *room.RequestSyncParams) (room.RequestSyncResponse, error)
	LeaderHeartbeat(context.Context, *room.LeaderHeartbeatParams) (int, error)
	UpdateUsername(context.Context, *room.UpdateUsernameParams) (room.UpdateUsernameResponse, error)
	SendChatMessage(context.Context, *room.SendChatMessageParams) (room.SendChatMessageResponse, error)
	GetSyncTick(context.Context, *room.GetSyncTickParams) (room.GetSyncTickResponse, error)
}

type iMediaService interface {
	Resolve(ctx context.Context, sourceUrl string) (domain.MediaRef, error)
	ResolveRutube(ctx context.Context, videoId string) (domain.MediaRef, error)
	ResolveVK(oid, id string) domain.MediaRef
}

type Config struct {
	SyncInterval time.Duration
}

type controller struct {
	roomService  iRoomService
	mediaService iMediaService
	upgrader     websocket.Upgrader
	validate     *validator.Validator
	logger       *slog.Logger
	clock        clockwork.Clock
	wsmux        *wsrouter.WSRouter
	syncInterval time.Duration
	// gorilla conns do not allow concurrent writers; broadcasts and the
	// per-follower sync loop write from different goroutines.
	writeMus sync.Map
}

func NewController(roomService iRoomService, mediaService iMediaService, clock clockwork.Clock, logger *slog.Logger, cfg *Config) *controller {
	c := &controller{
		roomService:  roomService,
		mediaService: mediaService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate:     validator.New(),
		logger:       logger,
		clock:        clock,
		syncInterval: cfg.SyncInterval,
	}
	c.wsmux = c.getWSRouter()

	return c
}
