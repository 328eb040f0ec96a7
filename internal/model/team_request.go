package model

import (
	"fmt"
	"time"
)

// TeamRequestType is what a team request asks for.
type TeamRequestType string

const (
	// TeamRequestJoin is posted by a student looking for a team.
	TeamRequestJoin TeamRequestType = "JOIN"
	// TeamRequestRecruit is posted by a team looking for members.
	TeamRequestRecruit TeamRequestType = "RECRUIT"
)

// ParseTeamRequestType accepts exactly "JOIN" or "RECRUIT".
func ParseTeamRequestType(s string) (TeamRequestType, bool) {
	switch t := TeamRequestType(s); t {
	case TeamRequestJoin, TeamRequestRecruit:
		return t, true
	}
	return "", false
}

// Counterpart returns the type a request of this type is matched against.
func (t TeamRequestType) Counterpart() TeamRequestType {
	if t == TeamRequestJoin {
		return TeamRequestRecruit
	}
	return TeamRequestJoin
}

// TeamRequestStatus is the lifecycle state of a team request.
type TeamRequestStatus string

const (
	TeamRequestOpen      TeamRequestStatus = "OPEN"
	TeamRequestMatched   TeamRequestStatus = "MATCHED"
	TeamRequestWithdrawn TeamRequestStatus = "WITHDRAWN"
	TeamRequestExpired   TeamRequestStatus = "EXPIRED"
)

// ParseTeamRequestStatus accepts one of the four known statuses.
func ParseTeamRequestStatus(s string) (TeamRequestStatus, bool) {
	switch st := TeamRequestStatus(s); st {
	case TeamRequestOpen, TeamRequestMatched, TeamRequestWithdrawn, TeamRequestExpired:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition is allowed.
func (s TeamRequestStatus) Terminal() bool {
	return s != TeamRequestOpen
}

// TeamRequest is a JOIN or RECRUIT post against an assignment.
type TeamRequest struct {
	ID               uint              `json:"id" gorm:"primaryKey"`
	AssignmentID     uint              `json:"assignmentId" gorm:"not null;index:idx_team_requests_lookup,priority:1"`
	RequesterID      uint              `json:"requesterId" gorm:"not null;index"`
	Type             TeamRequestType   `json:"type" gorm:"type:varchar(10);not null;index:idx_team_requests_lookup,priority:3"`
	Message          string            `json:"message,omitempty" gorm:"size:1000"`
	ContactHandle    string            `json:"contactHandle,omitempty" gorm:"size:100"`
	CurrentTeamSize  *int              `json:"currentTeamSize,omitempty"`
	Status           TeamRequestStatus `json:"status" gorm:"type:varchar(12);not null;default:'OPEN';index:idx_team_requests_lookup,priority:2"`
	MatchedRequestID *uint             `json:"matchedRequestId,omitempty"`
	// ActiveKey is set while the request is OPEN and cleared once it closes;
	// its unique index allows one open request per requester and assignment.
	ActiveKey *string    `json:"-" gorm:"size:64;uniqueIndex"`
	CreatedAt time.Time  `json:"createdAt" gorm:"index"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
}

// ActiveKeyFor builds the one-open-request key for a requester and assignment.
func ActiveKeyFor(requesterID, assignmentID uint) string {
	return fmt.Sprintf("%d:%d", requesterID, assignmentID)
}

// TeamRequestEvent is an append-only record of a team request transition.
type TeamRequestEvent struct {
	ID         uint              `json:"id" gorm:"primaryKey"`
	RequestID  uint              `json:"requestId" gorm:"not null;index"`
	ActorID    uint              `json:"actorId"` // 0 for system transitions
	FromStatus TeamRequestStatus `json:"fromStatus" gorm:"type:varchar(12)"`
	ToStatus   TeamRequestStatus `json:"toStatus" gorm:"type:varchar(12);not null"`
	Reason     string            `json:"reason,omitempty" gorm:"size:255"`
	CreatedAt  time.Time         `json:"createdAt"`
}
