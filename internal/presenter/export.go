package presenter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vincentbai/urltrail/internal/models"
)

// Export is a downloadable snapshot of one tab's log.
type Export struct {
	Filename string
	Data     []byte
}

func ExportFilename(tabID int, now time.Time) string {
	return fmt.Sprintf("url-history-tab-%d-%d.json", tabID, now.UnixMilli())
}

// MarshalExport encodes the chronological log as indented JSON, "[]" when empty.
func MarshalExport(tabLog models.TabLog) ([]byte, error) {
	if tabLog == nil {
		tabLog = models.TabLog{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tabLog); err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
