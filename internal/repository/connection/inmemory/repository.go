package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cinemate/server/internal/repository/connection"
)

// repo maps participant ids to their websocket connections and back.
// Connections are owned by their session handler; the repo only hands out
// references for message delivery.
type repo struct {
	mu       sync.RWMutex
	byConn   map[*websocket.Conn]string
	byMember map[string]*websocket.Conn
}

func NewRepo() *repo {
	return &repo{
		byConn:   make(map[*websocket.Conn]string),
		byMember: make(map[string]*websocket.Conn),
	}
}

func (r *repo) Add(conn *websocket.Conn, memberId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[conn] != "" || r.byMember[memberId] != nil {
		return connection.ErrAlreadyExists
	}

	r.byConn[conn] = memberId
	r.byMember[memberId] = conn

	return nil
}

func (r *repo) RemoveByMemberId(memberId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byMember[memberId]
	if !ok {
		return connection.ErrNotFound
	}

	delete(r.byConn, conn)
	delete(r.byMember, memberId)

	return nil
}

func (r *repo) GetConn(memberId string) (*websocket.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.byMember[memberId]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetMemberId(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memberId, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return memberId, nil
}
