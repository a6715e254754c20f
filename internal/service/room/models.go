package room

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/cinemate/server/internal/domain"
)

type JoinRoomParams struct {
	RoomId   string
	MemberId string
	Username string
	Conn     *websocket.Conn
}

type JoinRoomResponse struct {
	JoinedMember domain.Member
	Playback     domain.PlaybackState
	Memberlist   []domain.Member
	Conns        []*websocket.Conn
}

type DisconnectMemberParams struct {
	MemberId string
}

type DisconnectMemberResponse struct {
	LeftMember    Member
	NewLeader     *domain.Member
	Memberlist    []domain.Member
	Conns         []*websocket.Conn
	IsRoomDeleted bool
}

// Member aliases the domain type so controller code only imports the
// service package for its operations.
type Member = domain.Member

type ApplyCommandParams struct {
	SenderId string
	Command  domain.Command
}

type ApplyCommandResponse struct {
	Playback domain.PlaybackState
	Conns    []*websocket.Conn
}

type TransferLeadershipParams struct {
	SenderId string
	TargetId string
}

type TransferLeadershipResponse struct {
	NewLeader  domain.Member
	Memberlist []domain.Member
	Conns      []*websocket.Conn
}

type KickMemberParams struct {
	SenderId string
	TargetId string
}

type KickMemberResponse struct {
	KickedMember domain.Member
	KickedConn   *websocket.Conn
}

type RequestSyncParams struct {
	MemberId       string
	ClientSentAtMs int64
}

type RequestSyncResponse struct {
	LatencyMs         int
	CorrectedPosition float64
	IsPlaying         bool
	Sequence          uint64
	LeaderLatencyMs   int
	ServerTime        time.Time
}

type LeaderHeartbeatParams struct {
	MemberId       string
	ClientSentAtMs int64
}

type UpdateUsernameParams struct {
	MemberId string
	Username string
}

type UpdateUsernameResponse struct {
	UpdatedMember domain.Member
	Memberlist    []domain.Member
	Conns         []*websocket.Conn
}

type SendChatMessageParams struct {
	MemberId string
	Message  string
}

type SendChatMessageResponse struct {
	Sender     domain.Member
	ServerTime time.Time
	Conns      []*websocket.Conn
}

type GetSyncTickParams struct {
	RoomId   string
	MemberId string
}

type GetSyncTickResponse struct {
	CorrectedPosition float64
	IsPlaying         bool
	Sequence          uint64
	IsLeader          bool
	ServerTime        time.Time
}
