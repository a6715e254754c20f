package domain

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/maps"
)

// Room is the per-room state machine. It owns the member registry and the
// playback state and is the unit of mutual exclusion: every operation runs
// under the room mutex, and none of them performs I/O.
type Room struct {
	mu           sync.Mutex
	id           string
	leaderId     string
	members      map[string]*Member
	playback     PlaybackState
	membersLimit int
}

func NewRoom(id string, membersLimit int, now time.Time) *Room {
	return &Room{
		id:           id,
		members:      make(map[string]*Member),
		playback:     NewPlaybackState(now),
		membersLimit: membersLimit,
	}
}

func (r *Room) Id() string {
	return r.id
}

// AddMember inserts the member and returns the assigned role. The first
// member of a room becomes its leader.
func (r *Room) AddMember(memberId, username string, now time.Time) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.membersLimit > 0 && len(r.members) >= r.membersLimit {
		return "", ErrRoomIsFull
	}

	role := RoleViewer
	if len(r.members) == 0 {
		role = RoleLeader
		r.leaderId = memberId
	}

	r.members[memberId] = &Member{
		Id:          memberId,
		Username:    username,
		Role:        role,
		ConnectedAt: now,
	}

	return role, nil
}

// RemoveMember deletes the member. If the leader left and members remain,
// leadership moves to the member with the earliest ConnectedAt (id as tie
// break) and that member is returned as newLeader. remaining is the member
// count after removal; the caller destroys the room when it reaches zero.
func (r *Room) RemoveMember(memberId string) (left Member, newLeader *Member, remaining int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[memberId]
	if !ok {
		return Member{}, nil, len(r.members), ErrMemberNotFound
	}

	delete(r.members, memberId)

	if r.leaderId == memberId {
		r.leaderId = ""
		if next := r.oldestMember(); next != nil {
			next.Role = RoleLeader
			r.leaderId = next.Id
			leader := *next
			newLeader = &leader
		}
	}

	return *member, newLeader, len(r.members), nil
}

// TransferLeadership flips the roles of the current leader and targetId.
func (r *Room) TransferLeadership(senderId, targetId string) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if senderId != r.leaderId {
		return Member{}, ErrNotLeader
	}

	target, ok := r.members[targetId]
	if !ok {
		return Member{}, ErrMemberNotFound
	}

	r.members[senderId].Role = RoleViewer
	target.Role = RoleLeader
	r.leaderId = targetId

	return *target, nil
}

// AuthorizeKick checks that senderId may kick targetId and returns the
// target. The actual removal happens through the target's disconnect path.
func (r *Room) AuthorizeKick(senderId, targetId string) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if senderId != r.leaderId {
		return Member{}, ErrNotLeader
	}

	target, ok := r.members[targetId]
	if !ok {
		return Member{}, ErrMemberNotFound
	}

	return *target, nil
}

// ApplyCommand replaces the playback state with the successor produced by
// cmd. Only the leader may issue commands.
func (r *Room) ApplyCommand(senderId string, cmd Command, now time.Time) (PlaybackState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if senderId != r.leaderId {
		return PlaybackState{}, ErrNotLeader
	}

	next, err := r.playback.Apply(cmd, now)
	if err != nil {
		return PlaybackState{}, err
	}

	r.playback = next

	return next, nil
}

// RecordLatencyProbe stores the halved round-trip estimate on the member.
func (r *Room) RecordLatencyProbe(memberId string, clientSentAtMs int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[memberId]
	if !ok {
		return 0, ErrMemberNotFound
	}

	member.LatencyMs = LatencyEstimateMs(now, clientSentAtMs)

	return member.LatencyMs, nil
}

// RecordLeaderLatencyProbe is RecordLatencyProbe restricted to the current
// leader; probes from anyone else are dropped.
func (r *Room) RecordLeaderLatencyProbe(memberId string, clientSentAtMs int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if memberId != r.leaderId {
		return 0, ErrNotLeader
	}

	member, ok := r.members[memberId]
	if !ok {
		return 0, ErrMemberNotFound
	}

	member.LatencyMs = LatencyEstimateMs(now, clientSentAtMs)

	return member.LatencyMs, nil
}

// RenameMember updates the member's display name.
func (r *Room) RenameMember(memberId, username string) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[memberId]
	if !ok {
		return Member{}, ErrMemberNotFound
	}

	member.Username = username

	return *member, nil
}

func (r *Room) GetMember(memberId string) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[memberId]
	if !ok {
		return Member{}, ErrMemberNotFound
	}

	return *member, nil
}

func (r *Room) LeaderLatencyMs() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if leader, ok := r.members[r.leaderId]; ok {
		return leader.LatencyMs
	}

	return 0
}

// Playback returns the stored state. Callers must apply CorrectedPosition
// before presenting the position of a playing state.
func (r *Room) Playback() PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.playback
}

// SyncState returns what a reconciliation tick needs: the corrected
// position of the current playback state and whether memberId is the
// leader (leaders are authoritative and receive no corrections).
func (r *Room) SyncState(memberId string, now time.Time) (position float64, isPlaying bool, sequence uint64, isLeader bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[memberId]; !ok {
		return 0, false, 0, false, ErrMemberNotFound
	}

	return CorrectedPosition(r.playback, now), r.playback.IsPlaying, r.playback.Sequence, memberId == r.leaderId, nil
}

// Memberlist returns the members ordered by join time, id as tie break.
func (r *Room) Memberlist() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.memberlist()
}

func (r *Room) MemberIds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return maps.Keys(r.members)
}

func (r *Room) memberlist() []Member {
	members := make([]Member, 0, len(r.members))
	for _, member := range r.members {
		members = append(members, *member)
	}

	sort.Slice(members, func(i, j int) bool {
		if members[i].ConnectedAt.Equal(members[j].ConnectedAt) {
			return members[i].Id < members[j].Id
		}

		return members[i].ConnectedAt.Before(members[j].ConnectedAt)
	})

	return members
}

func (r *Room) oldestMember() *Member {
	var oldest *Member
	for _, member := range r.members {
		switch {
		case oldest == nil:
			oldest = member
		case member.ConnectedAt.Before(oldest.ConnectedAt):
			oldest = member
		case member.ConnectedAt.Equal(oldest.ConnectedAt) && member.Id < oldest.Id:
			oldest = member
		}
	}

	return oldest
}
