package media

import (
	"fmt"
	"math"
	"strings"
)

// Caption is one subtitle cue, in seconds.
type Caption struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
}

// FormatSRTTime renders seconds as HH:MM:SS,mmm, truncating every field.
func FormatSRTTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	// The epsilon absorbs binary representation error such as
	// 3661.999*1000 = 3661998.9999999995.
	total := int64(math.Floor(seconds*1000 + 1e-6))
	ms := total % 1000
	s := total / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", s/3600, (s%3600)/60, s%60, ms)
}

// BuildSRT renders captions as an SRT document with 1-based cue numbers.
func BuildSRT(captions []Caption) string {
	var b strings.Builder
	for i, c := range captions {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, FormatSRTTime(c.StartTime), FormatSRTTime(c.EndTime), c.Text)
	}
	return b.String()
}

func validateCaptions(captions []Caption) error {
	if len(captions) == 0 {
		return fmt.Errorf("at least one caption is required")
	}
	for i, c := range captions {
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("caption %d has no text", i+1)
		}
		if c.StartTime < 0 || c.EndTime <= c.StartTime {
			return fmt.Errorf("caption %d has invalid times %v..%v", i+1, c.StartTime, c.EndTime)
		}
	}
	return nil
}
