package presenter

import (
	"time"

	"github.com/vincentbai/urltrail/internal/models"
)

// Row is one rendered history entry.
type Row struct {
	// Position is the 1-based chronological position shown to the user.
	Position int `json:"position"`
	// Index is the 0-based chronological index used by Delete.
	Index     int       `json:"index"`
	Time      string    `json:"time"`
	Elapsed   string    `json:"elapsed"`
	URL       string    `json:"url"`
	Diff      Rendering `json:"diff"`
	Timestamp int64     `json:"timestamp"`
}

// BuildRows lists tabLog newest first. Each row is diffed against its
// chronological predecessor, not against its neighbour in the listing.
func BuildRows(tabLog models.TabLog, loc *time.Location) []Row {
	rows := make([]Row, 0, len(tabLog))
	for i := len(tabLog) - 1; i >= 0; i-- {
		entry := tabLog[i]
		var previousURL string
		if i > 0 {
			previousURL = tabLog[i-1].URL
		}
		rows = append(rows, Row{
			Position:  i + 1,
			Index:     i,
			Time:      FormatTimestamp(entry.Timestamp, loc),
			Elapsed:   FormatElapsed(entry.ElapsedMs),
			URL:       entry.URL,
			Diff:      FormatURLWithDiff(entry.URL, previousURL),
			Timestamp: entry.Timestamp,
		})
	}
	return rows
}
