package room

import (
	"context"
	"fmt"

	"github.com/cinemate/server/internal/domain"
)

// ApplyCommand applies a playback command on behalf of the sender and
// returns the new authoritative state plus the connections of every other
// member for the video-sync broadcast.
func (s *service) ApplyCommand(ctx context.Context, params *ApplyCommandParams) (ApplyCommandResponse, error) {
	room, err := s.getMemberRoom(params.SenderId)
	if err != nil {
		return ApplyCommandResponse{}, err
	}

	playback, err := room.ApplyCommand(params.SenderId, params.Command, s.clock.Now())
	if err != nil {
		return ApplyCommandResponse{}, fmt.Errorf("failed to apply command: %w", err)
	}

	return ApplyCommandResponse{
		Playback: playback,
		Conns:    s.memberConns(room.Memberlist(), params.SenderId),
	}, nil
}

// RequestSync records a latency probe for the member and returns the
// corrected position for an on-demand reconciliation reply.
func (s *service) RequestSync(ctx context.Context, params *RequestSyncParams) (RequestSyncResponse, error) {
	room, err := s.getMemberRoom(params.MemberId)
	if err != nil {
		return RequestSyncResponse{}, err
	}

	now := s.clock.Now()

	latencyMs, err := room.RecordLatencyProbe(params.MemberId, params.ClientSentAtMs, now)
	if err != nil {
		return RequestSyncResponse{}, fmt.Errorf("failed to record latency probe: %w", err)
	}

	playback := room.Playback()

	return RequestSyncResponse{
		LatencyMs:         latencyMs,
		CorrectedPosition: domain.CorrectedPosition(playback, now),
		IsPlaying:         playback.IsPlaying,
		Sequence:          playback.Sequence,
		LeaderLatencyMs:   room.LeaderLatencyMs(),
		ServerTime:        now,
	}, nil
}

// LeaderHeartbeat records a latency probe for the leader only; heartbeats
// from anyone else return domain.ErrNotLeader and are dropped by the
// caller.
func (s *service) LeaderHeartbeat(ctx context.Context, params *LeaderHeartbeatParams) (int, error) {
	room, err := s.getMemberRoom(params.MemberId)
	if err != nil {
		return 0, err
	}

	latencyMs, err := room.RecordLeaderLatencyProbe(params.MemberId, params.ClientSentAtMs, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to record leader latency probe: %w", err)
	}

	return latencyMs, nil
}

// SendChatMessage is stateless: it only resolves the sender and the
// broadcast targets.
func (s *service) SendChatMessage(ctx context.Context, params *SendChatMessageParams) (SendChatMessageResponse, error) {
	room, err := s.getMemberRoom(params.MemberId)
	if err != nil {
		return SendChatMessageResponse{}, err
	}

	sender, err := room.GetMember(params.MemberId)
	if err != nil {
		return SendChatMessageResponse{}, fmt.Errorf("failed to get sender: %w", err)
	}

	return SendChatMessageResponse{
		Sender:     sender,
		ServerTime: s.clock.Now(),
		Conns:      s.memberConns(room.Memberlist(), ""),
	}, nil
}

// GetSyncTick computes one reconciliation tick for the synchronization
// loop. The room and the member are re-resolved by id on every call; an
// error means the loop's subject is gone and the loop must stop.
func (s *service) GetSyncTick(ctx context.Context, params *GetSyncTickParams) (GetSyncTickResponse, error) {
	room, err := s.getRoom(params.RoomId)
	if err != nil {
		return GetSyncTickResponse{}, err
	}

	now := s.clock.Now()

	position, isPlaying, sequence, isLeader, err := room.SyncState(params.MemberId, now)
	if err != nil {
		return GetSyncTickResponse{}, fmt.Errorf("failed to get sync state: %w", err)
	}

	return GetSyncTickResponse{
		CorrectedPosition: position,
		IsPlaying:         isPlaying,
		Sequence:          sequence,
		IsLeader:          isLeader,
		ServerTime:        now,
	}, nil
}
