package domain

import "errors"

var (
	ErrNotLeader      = errors.New("only the leader can perform this action")
	ErrMemberNotFound = errors.New("member not found")
	ErrRoomIsFull     = errors.New("room is full")
	ErrInvalidCommand = errors.New("invalid command")
)
