package room

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinemate/server/internal/domain"
	"github.com/cinemate/server/internal/repository/connection/inmemory"
)

func newTestService(t *testing.T) (*service, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	connRepo := inmemory.NewRepo()

	return NewService(connRepo, clock, &Config{MembersLimit: 9}), clock
}

func join(t *testing.T, s *service, roomId, memberId, username string) JoinRoomResponse {
	t.Helper()

	resp, err := s.JoinRoom(context.Background(), &JoinRoomParams{
		RoomId:   roomId,
		MemberId: memberId,
		Username: username,
		Conn:     &websocket.Conn{},
	})
	require.NoError(t, err)

	return resp
}

func TestJoinRoomCreatesRoomWithLeader(t *testing.T) {
	s, _ := newTestService(t)

	resp := join(t, s, "r1", "p1", "user1")
	assert.Equal(t, domain.RoleLeader, resp.JoinedMember.Role, "first participant must become leader")
	assert.Nil(t, resp.Playback.Media, "fresh room must have no media loaded")
	assert.False(t, resp.Playback.IsPlaying)
	assert.Equal(t, 0.0, resp.Playback.PositionSeconds)
	assert.Len(t, resp.Memberlist, 1)
	assert.Len(t, resp.Conns, 1)

	resp = join(t, s, "r1", "p2", "user2")
	assert.Equal(t, domain.RoleViewer, resp.JoinedMember.Role)
	assert.Len(t, resp.Memberlist, 2)
	assert.Len(t, resp.Conns, 2)
}

func TestLoadThenPlayAdvancesFollowerTicks(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")
	join(t, s, "r1", "p2", "user2")

	_, err := s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p1",
		Command: domain.Command{
			Action: domain.CommandLoad,
			Media:  &domain.MediaRef{Url: "https://x/v.mp4", Kind: domain.MediaKindDirect},
		},
	})
	require.NoError(t, err)

	playResp, err := s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p1",
		Command:  domain.Command{Action: domain.CommandPlay},
	})
	require.NoError(t, err)
	assert.True(t, playResp.Playback.IsPlaying)
	assert.Len(t, playResp.Conns, 1, "broadcast must exclude the sender")

	clock.Advance(1500 * time.Millisecond)

	tick, err := s.GetSyncTick(ctx, &GetSyncTickParams{RoomId: "r1", MemberId: "p2"})
	require.NoError(t, err)
	assert.True(t, tick.IsPlaying)
	assert.False(t, tick.IsLeader)
	assert.Greater(t, tick.CorrectedPosition, 0.0, "corrected position must advance while playing")
	assert.Equal(t, uint64(2), tick.Sequence)

	leaderTick, err := s.GetSyncTick(ctx, &GetSyncTickParams{RoomId: "r1", MemberId: "p1"})
	require.NoError(t, err)
	assert.True(t, leaderTick.IsLeader, "the leader needs no correction")
}

func TestViewerCommandRejected(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")
	join(t, s, "r1", "p2", "user2")

	_, err := s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p2",
		Command:  domain.Command{Action: domain.CommandPause},
	})
	assert.ErrorIs(t, err, domain.ErrNotLeader)

	tick, err := s.GetSyncTick(ctx, &GetSyncTickParams{RoomId: "r1", MemberId: "p2"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tick.Sequence, "rejected command must not advance the sequence")
}

func TestLeaderDisconnectTransfersLeadership(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")
	clock.Advance(time.Second)
	join(t, s, "r1", "p2", "user2")
	clock.Advance(time.Second)
	join(t, s, "r1", "p3", "user3")

	resp, err := s.DisconnectMember(ctx, &DisconnectMemberParams{MemberId: "p1"})
	require.NoError(t, err)
	assert.False(t, resp.IsRoomDeleted)
	require.NotNil(t, resp.NewLeader)
	assert.Equal(t, "p2", resp.NewLeader.Id, "earliest joined member must be promoted")
	assert.Len(t, resp.Memberlist, 2)
	assert.Len(t, resp.Conns, 2)

	leaders := 0
	for _, member := range resp.Memberlist {
		if member.Role == domain.RoleLeader {
			leaders++
		}
	}
	assert.Equal(t, 1, leaders)
}

func TestLastDisconnectDeletesRoom(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")

	loadResp, err := s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p1",
		Command: domain.Command{
			Action: domain.CommandLoad,
			Media:  &domain.MediaRef{Url: "https://x/v.mp4"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, loadResp.Playback.Media)

	resp, err := s.DisconnectMember(ctx, &DisconnectMemberParams{MemberId: "p1"})
	require.NoError(t, err)
	assert.True(t, resp.IsRoomDeleted)
	assert.Nil(t, resp.NewLeader)

	_, err = s.GetSyncTick(ctx, &GetSyncTickParams{RoomId: "r1", MemberId: "p1"})
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// re-joining the same id must produce a fresh room
	rejoin := join(t, s, "r1", "p2", "user2")
	assert.Equal(t, domain.RoleLeader, rejoin.JoinedMember.Role)
	assert.Nil(t, rejoin.Playback.Media, "recreated room must have no media loaded")
	assert.Equal(t, uint64(0), rejoin.Playback.Sequence)
}

func TestDisconnectUnknownMemberIsNoOp(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.DisconnectMember(context.Background(), &DisconnectMemberParams{MemberId: "ghost"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSeekThenPlayCorrectsForward(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")
	join(t, s, "r1", "p2", "user2")

	_, err := s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p1",
		Command: domain.Command{
			Action: domain.CommandLoad,
			Media:  &domain.MediaRef{Url: "https://x/v.mp4"},
		},
	})
	require.NoError(t, err)

	seekTime := 42.0
	seekResp, err := s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p1",
		Command:  domain.Command{Action: domain.CommandSeek, Time: &seekTime},
	})
	require.NoError(t, err)
	assert.False(t, seekResp.Playback.IsPlaying, "seek must land paused")
	assert.Equal(t, 42.0, seekResp.Playback.PositionSeconds)

	playResp, err := s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p1",
		Command:  domain.Command{Action: domain.CommandPlay},
	})
	require.NoError(t, err)
	assert.True(t, playResp.Playback.IsPlaying)
	assert.Equal(t, 42.0, playResp.Playback.PositionSeconds)

	clock.Advance(3 * time.Second)

	tick, err := s.GetSyncTick(ctx, &GetSyncTickParams{RoomId: "r1", MemberId: "p2"})
	require.NoError(t, err)
	assert.InDelta(t, 45.0, tick.CorrectedPosition, 0.001)
}

func TestTransferLeadership(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")
	join(t, s, "r1", "p2", "user2")

	_, err := s.TransferLeadership(ctx, &TransferLeadershipParams{SenderId: "p2", TargetId: "p1"})
	assert.ErrorIs(t, err, domain.ErrNotLeader)

	resp, err := s.TransferLeadership(ctx, &TransferLeadershipParams{SenderId: "p1", TargetId: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "p2", resp.NewLeader.Id)

	// the old leader can no longer issue commands
	_, err = s.ApplyCommand(ctx, &ApplyCommandParams{
		SenderId: "p1",
		Command:  domain.Command{Action: domain.CommandPause},
	})
	assert.ErrorIs(t, err, domain.ErrNotLeader)
}

func TestKickMember(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")
	join(t, s, "r1", "p2", "user2")

	_, err := s.KickMember(ctx, &KickMemberParams{SenderId: "p2", TargetId: "p1"})
	assert.ErrorIs(t, err, domain.ErrNotLeader)

	resp, err := s.KickMember(ctx, &KickMemberParams{SenderId: "p1", TargetId: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "p2", resp.KickedMember.Id)
	assert.NotNil(t, resp.KickedConn)

	// the kick itself must not remove the member, the disconnect path does
	tick, err := s.GetSyncTick(ctx, &GetSyncTickParams{RoomId: "r1", MemberId: "p2"})
	require.NoError(t, err)
	assert.False(t, tick.IsLeader)
}

func TestRequestSyncRecordsLatency(t *testing.T) {
	s, clock := newTestService(t)
	ctx := context.Background()

	join(t, s, "r1", "p1", "user1")
	join(t, s, "r1", "p2", "user2")

	// leader reports its own latency via heartbeat
	leaderLatency, err := s.LeaderHeartbeat(ctx, &LeaderHeartbeatParams{
		MemberId:       "p1",
		ClientSentAtMs: clock.Now().UnixMilli() - 80,
	})
	require.NoError(t, err)
	assert.Equal(t, 40, leaderLatency)

	_, err = s.LeaderHeartbeat(ctx, &LeaderHeartbeatParams{
		MemberId:       "p2",
		ClientSentAtMs: clock.Now().UnixMilli(),
	})
	assert.ErrorIs(t, err, domain.ErrNotLeader, "heartbeat from a viewer must be dropped")

	resp, err := s.RequestSync(ctx, &RequestSyncParams{
		MemberId:       "p2",
		ClientSentAtMs: clock.Now().UnixMilli() - 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, resp.LatencyMs)
	assert.Equal(t, 40, resp.LeaderLatencyMs)
	assert.Equal(t, clock.Now(), resp.ServerTime)
}

func TestUpdateUsername(t *testing.T) {
	s, _ := newTestService(t)

	join(t, s, "r1", "p1", "user1")

	resp, err := s.UpdateUsername(context.Background(), &UpdateUsernameParams{
		MemberId: "p1",
		Username: "renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", resp.UpdatedMember.Username)
	assert.Equal(t, "renamed", resp.Memberlist[0].Username)
}

func TestSendChatMessage(t *testing.T) {
	s, _ := newTestService(t)

	join(t, s, "r1", "p1", "user1")
	join(t, s, "r1", "p2", "user2")

	resp, err := s.SendChatMessage(context.Background(), &SendChatMessageParams{MemberId: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "user2", resp.Sender.Username)
	assert.Len(t, resp.Conns, 2, "chat goes to the whole room including the sender")
}

func TestJoinFullRoom(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewService(inmemory.NewRepo(), clock, &Config{MembersLimit: 1})

	join(t, s, "r1", "p1", "user1")

	_, err := s.JoinRoom(context.Background(), &JoinRoomParams{
		RoomId:   "r1",
		MemberId: "p2",
		Username: "user2",
		Conn:     &websocket.Conn{},
	})
	assert.ErrorIs(t, err, domain.ErrRoomIsFull)

	// the failed joiner must not linger in the directory
	_, err = s.GetSyncTick(context.Background(), &GetSyncTickParams{RoomId: "r1", MemberId: "p2"})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}
