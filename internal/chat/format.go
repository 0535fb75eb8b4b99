package chat

import (
	"time"

	"social-client/internal/models"
)

// DayGroup is a run of consecutive messages sent on the same calendar day.
type DayGroup struct {
	Label    string           `json:"label"`
	Day      time.Time        `json:"day"`
	Messages []models.Message `json:"messages"`
}

// GroupByDay splits msgs into day dividers without reordering them. Days are
// taken in now's location.
func GroupByDay(msgs []models.Message, now time.Time) []DayGroup {
	var groups []DayGroup
	for _, m := range msgs {
		day := startOfDay(m.CreatedAt.In(now.Location()))
		if n := len(groups); n > 0 && groups[n-1].Day.Equal(day) {
			groups[n-1].Messages = append(groups[n-1].Messages, m)
			continue
		}
		groups = append(groups, DayGroup{
			Label:    dayLabel(day, now),
			Day:      day,
			Messages: []models.Message{m},
		})
	}
	return groups
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayLabel(day, now time.Time) string {
	today := startOfDay(now)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.Year() == today.Year():
		return day.Format("Monday, January 2")
	default:
		return day.Format("January 2, 2006")
	}
}

// ConversationTimeLabel renders the timestamp shown next to a chat list entry:
// the clock time within the last 24 hours, "Yesterday", a weekday inside a
// week, and a short date beyond that.
func ConversationTimeLabel(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	diffDays := int(now.Sub(t).Hours() / 24)
	switch {
	case diffDays <= 0:
		return t.Format("15:04")
	case diffDays == 1:
		return "Yesterday"
	case diffDays < 7:
		return t.Format("Mon")
	default:
		return t.Format("Jan 2")
	}
}
