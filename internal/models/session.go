package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusScheduled  = "scheduled"
	SessionStatusInProgress = "in_progress"
	SessionStatusCompleted  = "completed"
	SessionStatusCancelled  = "cancelled"
)

// SessionTerminal reports whether a status frees the teacher's calendar.
func SessionTerminal(status string) bool {
	return status == SessionStatusCompleted || status == SessionStatusCancelled
}

type Session struct {
	ID                 uuid.UUID  `json:"id"`
	MatchID            int64      `json:"match_id"`
	TeacherID          int64      `json:"teacher_id"`
	StudentID          int64      `json:"student_id"`
	SkillID            int64      `json:"skill_id"`
	ScheduledStart     time.Time  `json:"scheduled_start"`
	ScheduledEnd       time.Time  `json:"scheduled_end"`
	ActualStart        *time.Time `json:"actual_start"`
	ActualEnd          *time.Time `json:"actual_end"`
	Status             string     `json:"status"`
	CreditsAmount      int        `json:"credits_amount"`
	VideoRoomID        *string    `json:"video_room_id"`
	Notes              *string    `json:"notes"`
	CancellationReason *string    `json:"cancellation_reason"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
