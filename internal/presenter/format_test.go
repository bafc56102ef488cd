package presenter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{750, "750ms"},
		{999, "999ms"},
		{1000, "1.00s"},
		{4500, "4.50s"},
		{59999, "60.00s"},
		{60000, "1m 0s"},
		{125000, "2m 5s"},
		{90500, "1m 31s"},
		{3600000, "60m 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatElapsed(tt.ms))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 4, 13, 7, 9, 0, time.UTC).UnixMilli()
	assert.Equal(t, "13:07:09", FormatTimestamp(ts, time.UTC))

	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "22:07:09", FormatTimestamp(ts, tokyo))
}
