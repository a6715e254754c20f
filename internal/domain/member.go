package domain

import "time"

type Role string

const (
	RoleLeader Role = "leader"
	RoleViewer Role = "viewer"
)

type Member struct {
	Id          string    `json:"userId"`
	Username    string    `json:"username"`
	Role        Role      `json:"role"`
	LatencyMs   int       `json:"latencyMs"`
	ConnectedAt time.Time `json:"-"`
}
