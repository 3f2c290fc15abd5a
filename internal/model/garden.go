package model

import "time"

// Garden is a shared reading group.  Every garden has at least one member
// and exactly one of its members carries the leader flag.
type Garden struct {
	ID        uint64    // gardens.id
	Title     string    // gardens.title
	Info      string    // gardens.info
	Color     string    // gardens.color
	CreatedAt time.Time // gardens.created_at
}

// GardenMember links a user to a garden.  JoinedAt orders members for
// leader succession: when a leader's account is deleted the earliest-joined
// remaining member is promoted.
type GardenMember struct {
	ID       uint64    // garden_members.id
	GardenID uint64    // garden_members.garden_id
	UserID   uint64    // garden_members.user_id
	IsLeader bool      // garden_members.is_leader
	JoinedAt time.Time // garden_members.joined_at
}
