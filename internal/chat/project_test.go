package chat

import (
	"testing"
	"time"

	"github.com/devanshm/campuschat-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgAt(id, sender string, at time.Time) models.Message {
	return models.Message{
		ID: id, ConversationID: testConvID, SenderID: sender,
		Kind: models.KindText, Content: id, CreatedAt: at,
	}
}

func TestGroupTimelineSplitsByCalendarDay(t *testing.T) {
	mon := time.Date(2026, 3, 9, 23, 55, 0, 0, time.UTC)
	tue := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)

	groups := GroupTimeline([]models.Message{
		msgAt("m1", testStudent, mon),
		msgAt("m2", testFaculty, mon.Add(time.Minute)),
		msgAt("m3", testFaculty, tue),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), groups[0].Date)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), groups[1].Date)
	require.Len(t, groups[0].Messages, 2)
	require.Len(t, groups[1].Messages, 1)
}

func TestGroupTimelineFlagsSenderRuns(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	groups := GroupTimeline([]models.Message{
		msgAt("m1", testStudent, base),
		msgAt("m2", testStudent, base.Add(time.Minute)),
		msgAt("m3", testStudent, base.Add(2*time.Minute)),
		msgAt("m4", testFaculty, base.Add(3*time.Minute)),
		msgAt("m5", testStudent, base.Add(4*time.Minute)),
	})

	require.Len(t, groups, 1)
	entries := groups[0].Messages
	require.Len(t, entries, 5)

	type flags struct{ first, last bool }
	want := []flags{
		{true, false},  // m1 opens the student run
		{false, false}, // m2 mid-run
		{false, true},  // m3 closes it
		{true, true},   // m4 stands alone
		{true, true},   // m5 starts a fresh student run
	}
	for i, w := range want {
		assert.Equal(t, w.first, entries[i].FirstInRun, "entry %d FirstInRun", i)
		assert.Equal(t, w.last, entries[i].LastInRun, "entry %d LastInRun", i)
	}
}

// A run never spans a date boundary: the same sender on consecutive days
// opens a fresh run in each group.
func TestGroupTimelineRunsResetAtMidnight(t *testing.T) {
	mon := time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)
	groups := GroupTimeline([]models.Message{
		msgAt("m1", testStudent, mon),
		msgAt("m2", testStudent, mon.Add(2*time.Minute)),
	})

	require.Len(t, groups, 2)
	assert.True(t, groups[0].Messages[0].FirstInRun)
	assert.True(t, groups[0].Messages[0].LastInRun)
	assert.True(t, groups[1].Messages[0].FirstInRun)
	assert.True(t, groups[1].Messages[0].LastInRun)
}

func TestGroupTimelineIsPureAndDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	input := []models.Message{
		msgAt("m1", testStudent, base),
		msgAt("m2", testFaculty, base.Add(time.Minute)),
	}

	first := GroupTimeline(input)
	second := GroupTimeline(input)
	assert.Equal(t, first, second)

	// The input slice is never mutated.
	assert.Equal(t, "m1", input[0].ID)
	assert.Equal(t, "m2", input[1].ID)
}

func TestGroupTimelineEmptyInput(t *testing.T) {
	assert.Empty(t, GroupTimeline(nil))
	assert.Empty(t, GroupTimeline([]models.Message{}))
}
