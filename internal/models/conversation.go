package models

import "time"

// Conversation is the persistent channel between exactly one student and one
// faculty member. Storage keeps the two parties role-qualified, but lookups
// treat the pair as unordered: there is never more than one conversation for
// a given {student, faculty} pair.
type Conversation struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	FacultyID string    `json:"faculty_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the two parties.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.StudentID == userID || c.FacultyID == userID
}

// PeerOf returns the other party of the conversation. Returns "" if userID
// is not a participant.
func (c *Conversation) PeerOf(userID string) string {
	switch userID {
	case c.StudentID:
		return c.FacultyID
	case c.FacultyID:
		return c.StudentID
	}
	return ""
}
