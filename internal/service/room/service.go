package room

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/cinemate/server/internal/domain"
)

var ErrRoomNotFound = errors.New("room not found")

type iConnRepo interface {
	Add(conn *websocket.Conn, memberId string) error
	RemoveByMemberId(memberId string) error
	GetConn(memberId string) (*websocket.Conn, error)
	GetMemberId(conn *websocket.Conn) (string, error)
}

type Config struct {
	MembersLimit int
}

// service owns the room directory: the process-wide id to room mapping and
// the member to room index. Rooms are created lazily on first join and
// destroyed the moment their last member leaves.
type service struct {
	mu          sync.RWMutex
	rooms       map[string]*domain.Room
	memberRooms map[string]string
	connRepo    iConnRepo
	clock       clockwork.Clock
	cfg         Config
}

func NewService(connRepo iConnRepo, clock clockwork.Clock, cfg *Config) *service {
	return &service{
		rooms:       make(map[string]*domain.Room),
		memberRooms: make(map[string]string),
		connRepo:    connRepo,
		clock:       clock,
		cfg:         *cfg,
	}
}

func (s *service) getRoom(roomId string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

func (s *service) getMemberRoom(memberId string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomId, ok := s.memberRooms[memberId]
	if !ok {
		return nil, ErrRoomNotFound
	}

	room, ok := s.rooms[roomId]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

// removeRoom deletes the directory entry. Idempotent: removing an already
// absent room is a no-op, which guards the race between the last member
// leaving and a concurrent lookup.
func (s *service) removeRoom(roomId string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomId)
}

// memberConns resolves connection handles for a member list, skipping
// members whose connection is already gone.
func (s *service) memberConns(members []domain.Member, excludeId string) []*websocket.Conn {
	conns := make([]*websocket.Conn, 0, len(members))
	for _, member := range members {
		if member.Id == excludeId {
			continue
		}

		conn, err := s.connRepo.GetConn(member.Id)
		if err != nil {
			continue
		}

		conns = append(conns, conn)
	}

	return conns
}
