package room

import (
	"context"
	"fmt"

	"github.com/cinemate/server/internal/domain"
)

// JoinRoom adds the member to the room, creating the room if it does not
// exist yet. The first member of a fresh room becomes its leader.
func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	if err := s.connRepo.Add(params.Conn, params.MemberId); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to register connection: %w", err)
	}

	s.mu.Lock()
	room, ok := s.rooms[params.RoomId]
	if !ok {
		room = domain.NewRoom(params.RoomId, s.cfg.MembersLimit, s.clock.Now())
		s.rooms[params.RoomId] = room
	}

	if _, err := room.AddMember(params.MemberId, params.Username, s.clock.Now()); err != nil {
		if !ok {
			delete(s.rooms, params.RoomId)
		}
		s.mu.Unlock()
		s.connRepo.RemoveByMemberId(params.MemberId)

		return JoinRoomResponse{}, fmt.Errorf("failed to add member: %w", err)
	}

	s.memberRooms[params.MemberId] = params.RoomId
	s.mu.Unlock()

	joinedMember, err := room.GetMember(params.MemberId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get joined member: %w", err)
	}

	memberlist := room.Memberlist()

	return JoinRoomResponse{
		JoinedMember: joinedMember,
		Playback:     room.Playback(),
		Memberlist:   memberlist,
		Conns:        s.memberConns(memberlist, ""),
	}, nil
}

// DisconnectMember removes the member from its room, promoting a new
// leader when the leader left and destroying the room when it became
// empty.
func (s *service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	s.connRepo.RemoveByMemberId(params.MemberId)

	s.mu.Lock()
	roomId, ok := s.memberRooms[params.MemberId]
	if !ok {
		s.mu.Unlock()
		return DisconnectMemberResponse{}, ErrRoomNotFound
	}
	delete(s.memberRooms, params.MemberId)

	room, ok := s.rooms[roomId]
	if !ok {
		s.mu.Unlock()
		return DisconnectMemberResponse{}, ErrRoomNotFound
	}

	leftMember, newLeader, remaining, err := room.RemoveMember(params.MemberId)
	if err != nil {
		s.mu.Unlock()
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	isRoomDeleted := remaining == 0
	if isRoomDeleted {
		delete(s.rooms, roomId)
	}
	s.mu.Unlock()

	memberlist := room.Memberlist()

	return DisconnectMemberResponse{
		LeftMember:    leftMember,
		NewLeader:     newLeader,
		Memberlist:    memberlist,
		Conns:         s.memberConns(memberlist, ""),
		IsRoomDeleted: isRoomDeleted,
	}, nil
}

// TransferLeadership flips leadership from the sender to the target.
func (s *service) TransferLeadership(ctx context.Context, params *TransferLeadershipParams) (TransferLeadershipResponse, error) {
	room, err := s.getMemberRoom(params.SenderId)
	if err != nil {
		return TransferLeadershipResponse{}, err
	}

	newLeader, err := room.TransferLeadership(params.SenderId, params.TargetId)
	if err != nil {
		return TransferLeadershipResponse{}, fmt.Errorf("failed to transfer leadership: %w", err)
	}

	memberlist := room.Memberlist()

	return TransferLeadershipResponse{
		NewLeader:  newLeader,
		Memberlist: memberlist,
		Conns:      s.memberConns(memberlist, ""),
	}, nil
}

// KickMember authorizes the kick and returns the target's connection so
// the controller can force-close it. The removal itself happens through
// the target's normal disconnect path.
func (s *service) KickMember(ctx context.Context, params *KickMemberParams) (KickMemberResponse, error) {
	room, err := s.getMemberRoom(params.SenderId)
	if err != nil {
		return KickMemberResponse{}, err
	}

	target, err := room.AuthorizeKick(params.SenderId, params.TargetId)
	if err != nil {
		return KickMemberResponse{}, fmt.Errorf("failed to kick member: %w", err)
	}

	conn, err := s.connRepo.GetConn(target.Id)
	if err != nil {
		return KickMemberResponse{}, fmt.Errorf("failed to get target connection: %w", err)
	}

	return KickMemberResponse{KickedMember: target, KickedConn: conn}, nil
}

// UpdateUsername renames the member; the full memberlist is returned for a
// roster refresh broadcast.
func (s *service) UpdateUsername(ctx context.Context, params *UpdateUsernameParams) (UpdateUsernameResponse, error) {
	room, err := s.getMemberRoom(params.MemberId)
	if err != nil {
		return UpdateUsernameResponse{}, err
	}

	updatedMember, err := room.RenameMember(params.MemberId, params.Username)
	if err != nil {
		return UpdateUsernameResponse{}, fmt.Errorf("failed to rename member: %w", err)
	}

	memberlist := room.Memberlist()

	return UpdateUsernameResponse{
		UpdatedMember: updatedMember,
		Memberlist:    memberlist,
		Conns:         s.memberConns(memberlist, ""),
	}, nil
}
