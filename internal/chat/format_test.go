package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-client/internal/models"
)

func TestGroupByDay(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	at := func(day, hour int) models.Message {
		return models.Message{ID: models.IDFromInt(int64(day*100 + hour)), CreatedAt: time.Date(2024, 5, day, hour, 0, 0, 0, time.UTC)}
	}
	msgs := []models.Message{at(1, 8), at(1, 9), at(9, 23), at(10, 1), at(10, 2)}

	groups := GroupByDay(msgs, now)
	require.Len(t, groups, 3)
	assert.Equal(t, "Wednesday, May 1", groups[0].Label)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "Yesterday", groups[1].Label)
	assert.Equal(t, "Today", groups[2].Label)
	assert.Len(t, groups[2].Messages, 2)

	old := models.Message{CreatedAt: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "December 31, 2023", GroupByDay([]models.Message{old}, now)[0].Label)
	assert.Empty(t, GroupByDay(nil, now))
}

func TestGroupByDayKeepsArrivalOrder(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	today := models.Message{ID: "t", CreatedAt: now}
	yesterday := models.Message{ID: "y", CreatedAt: now.AddDate(0, 0, -1)}

	groups := GroupByDay([]models.Message{today, yesterday, today}, now)
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"Today", "Yesterday", "Today"}, []string{groups[0].Label, groups[1].Label, groups[2].Label})
}

func TestConversationTimeLabel(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "08:15", ConversationTimeLabel(now.Add(-45*time.Minute), now))
	assert.Equal(t, "Yesterday", ConversationTimeLabel(now.Add(-30*time.Hour), now))
	assert.Equal(t, "Tue", ConversationTimeLabel(time.Date(2024, 5, 7, 9, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "Apr 2", ConversationTimeLabel(time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC), now))
	assert.Equal(t, "", ConversationTimeLabel(time.Time{}, now))
}
