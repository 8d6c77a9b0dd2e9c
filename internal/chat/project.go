package chat

import (
	"time"

	"github.com/devanshm/campuschat-backend/internal/models"
)

// TimelineEntry is one message with its presentational clustering flags.
// FirstInRun is set when the previous message in the date group has a
// different sender (or there is none); LastInRun analogously.
type TimelineEntry struct {
	Message    models.Message
	FirstInRun bool
	LastInRun  bool
}

// DateGroup is one calendar day's worth of messages.
type DateGroup struct {
	Date     time.Time // midnight UTC of the calendar date
	Messages []TimelineEntry
}

// GroupTimeline derives the date-grouped, sender-run-flagged display
// order from a canonical message list. It is a pure function: no side
// effects, and the same input always yields the same output. The input
// order (created-at ascending) is preserved.
func GroupTimeline(msgs []models.Message) []DateGroup {
	var groups []DateGroup
	for _, m := range msgs {
		day := m.CreatedAt.UTC().Truncate(24 * time.Hour)
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, DateGroup{Date: day})
		}
		g := &groups[len(groups)-1]

		entry := TimelineEntry{Message: m, FirstInRun: true, LastInRun: true}
		if n := len(g.Messages); n > 0 {
			prev := &g.Messages[n-1]
			if prev.Message.SenderID == m.SenderID {
				entry.FirstInRun = false
				prev.LastInRun = false
			}
		}
		g.Messages = append(g.Messages, entry)
	}
	return groups
}
