package models

import (
	"fmt"
	"strconv"
)

const MessageTypeURLChange = "URL_CHANGE"

// URLEvent is one observed navigation inside a tab.
type URLEvent struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"` // epoch ms
	ElapsedMs int64  `json:"elapsedMs"` // since the previous event of the same tab
}

// TabLog is chronological: insertion order is observation order.
type TabLog []URLEvent

// TabHistory is the stored document, keyed by the decimal tab id.
type TabHistory map[string]TabLog

// Message is what an observer sends to the relay. The tab id travels with the transport.
type Message struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
	ElapsedMs int64  `json:"elapsedMs"`
}

func (m Message) Event() URLEvent {
	return URLEvent{URL: m.URL, Timestamp: m.Timestamp, ElapsedMs: m.ElapsedMs}
}

func TabKey(tabID int) string {
	return strconv.Itoa(tabID)
}

func ParseTabID(raw string) (int, error) {
	tabID, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid tab id %q: %w", raw, err)
	}
	if tabID < 0 {
		return 0, fmt.Errorf("invalid tab id %q: must not be negative", raw)
	}
	return tabID, nil
}

func ValidateEvent(event URLEvent) error {
	if event.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if event.Timestamp <= 0 {
		return fmt.Errorf("timestamp must be positive")
	}
	if event.ElapsedMs < 0 {
		return fmt.Errorf("elapsedMs must not be negative")
	}
	return nil
}
