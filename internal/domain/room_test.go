package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSingleLeader(t *testing.T, r *Room) {
	t.Helper()

	leaders := 0
	for _, member := range r.Memberlist() {
		if member.Role == RoleLeader {
			leaders++
		}
	}
	assert.Equal(t, 1, leaders, "room must have exactly one leader")
}

func TestFirstMemberBecomesLeader(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	role, err := r.AddMember("p1", "user1", now)
	require.NoError(t, err)
	assert.Equal(t, RoleLeader, role)

	role, err = r.AddMember("p2", "user2", now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, role)

	assertSingleLeader(t, r)
}

func TestRoomIsFull(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 2, now)

	_, err := r.AddMember("p1", "user1", now)
	require.NoError(t, err)
	_, err = r.AddMember("p2", "user2", now)
	require.NoError(t, err)

	_, err = r.AddMember("p3", "user3", now)
	assert.ErrorIs(t, err, ErrRoomIsFull)
}

func TestRemoveLeaderTransfersToOldest(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)
	r.AddMember("p2", "user2", now.Add(time.Second))
	r.AddMember("p3", "user3", now.Add(2*time.Second))

	left, newLeader, remaining, err := r.RemoveMember("p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", left.Id)
	assert.Equal(t, 2, remaining)
	require.NotNil(t, newLeader)
	assert.Equal(t, "p2", newLeader.Id, "earliest joined member must be promoted")
	assert.Equal(t, RoleLeader, newLeader.Role)

	member, err := r.GetMember("p2")
	require.NoError(t, err)
	assert.Equal(t, RoleLeader, member.Role, "promoted member must be in the registry")
	assertSingleLeader(t, r)
}

func TestRemoveViewerKeepsLeader(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)
	r.AddMember("p2", "user2", now.Add(time.Second))

	_, newLeader, remaining, err := r.RemoveMember("p2")
	require.NoError(t, err)
	assert.Nil(t, newLeader)
	assert.Equal(t, 1, remaining)
	assertSingleLeader(t, r)
}

func TestRemoveUnknownMember(t *testing.T) {
	r := NewRoom("r1", 9, time.Now())

	_, _, _, err := r.RemoveMember("ghost")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestTransferLeadership(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)
	r.AddMember("p2", "user2", now.Add(time.Second))

	_, err := r.TransferLeadership("p2", "p1")
	assert.ErrorIs(t, err, ErrNotLeader)

	_, err = r.TransferLeadership("p1", "ghost")
	assert.ErrorIs(t, err, ErrMemberNotFound)

	newLeader, err := r.TransferLeadership("p1", "p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", newLeader.Id)
	assert.Equal(t, RoleLeader, newLeader.Role)

	oldLeader, err := r.GetMember("p1")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, oldLeader.Role)
	assertSingleLeader(t, r)
}

func TestApplyCommandRequiresLeader(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)
	r.AddMember("p2", "user2", now)

	before := r.Playback()

	_, err := r.ApplyCommand("p2", Command{Action: CommandPause}, now)
	assert.ErrorIs(t, err, ErrNotLeader)
	assert.Equal(t, before.Sequence, r.Playback().Sequence, "rejected command must not advance the sequence")

	state, err := r.ApplyCommand("p1", Command{
		Action: CommandLoad,
		Media:  &MediaRef{Url: "https://x/v.mp4"},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, before.Sequence+1, state.Sequence)
}

func TestAuthorizeKick(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)
	r.AddMember("p2", "user2", now)

	_, err := r.AuthorizeKick("p2", "p1")
	assert.ErrorIs(t, err, ErrNotLeader)

	_, err = r.AuthorizeKick("p1", "ghost")
	assert.ErrorIs(t, err, ErrMemberNotFound)

	target, err := r.AuthorizeKick("p1", "p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", target.Id)

	member, err := r.GetMember("p2")
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, member.Role, "kick must not remove the member synchronously")
}

func TestRecordLeaderLatencyProbe(t *testing.T) {
	now := time.UnixMilli(10_000)
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)
	r.AddMember("p2", "user2", now)

	_, err := r.RecordLeaderLatencyProbe("p2", 9_900, now)
	assert.ErrorIs(t, err, ErrNotLeader)

	latency, err := r.RecordLeaderLatencyProbe("p1", 9_900, now)
	require.NoError(t, err)
	assert.Equal(t, 50, latency)
	assert.Equal(t, 50, r.LeaderLatencyMs())
}

func TestSyncState(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)
	r.AddMember("p2", "user2", now)

	_, err := r.ApplyCommand("p1", Command{Action: CommandLoad, Media: &MediaRef{Url: "https://x/v.mp4"}}, now)
	require.NoError(t, err)
	_, err = r.ApplyCommand("p1", Command{Action: CommandPlay}, now)
	require.NoError(t, err)

	position, isPlaying, sequence, isLeader, err := r.SyncState("p2", now.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, isPlaying)
	assert.False(t, isLeader)
	assert.Equal(t, uint64(2), sequence)
	assert.InDelta(t, 2.0, position, 0.001)

	_, _, _, isLeader, err = r.SyncState("p1", now)
	require.NoError(t, err)
	assert.True(t, isLeader)

	_, _, _, _, err = r.SyncState("ghost", now)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestMemberlistOrderedByJoinTime(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("b", "user1", now.Add(time.Second))
	r.AddMember("a", "user2", now)
	r.AddMember("c", "user3", now.Add(time.Second))

	memberlist := r.Memberlist()
	require.Len(t, memberlist, 3)
	assert.Equal(t, "a", memberlist[0].Id)
	assert.Equal(t, "b", memberlist[1].Id)
	assert.Equal(t, "c", memberlist[2].Id)
}

func TestRenameMember(t *testing.T) {
	now := time.Now()
	r := NewRoom("r1", 9, now)

	r.AddMember("p1", "user1", now)

	member, err := r.RenameMember("p1", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", member.Username)

	_, err = r.RenameMember("ghost", "x")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}
