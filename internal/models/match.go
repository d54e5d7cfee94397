package models

import "time"

const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusDeclined = "declined"
)

// Match pairs a teacher and a student for one skill. Sessions may only be
// scheduled against an accepted match.
type Match struct {
	ID        int64     `json:"id"`
	TeacherID int64     `json:"teacher_id"`
	StudentID int64     `json:"student_id"`
	SkillID   int64     `json:"skill_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
