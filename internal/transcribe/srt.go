package transcribe

import (
	"fmt"
	"strings"
	"time"
)

// RenderSRT serializes segments as a SubRip track: 1-based cue index,
// "HH:MM:SS,mmm --> HH:MM:SS,mmm", text, blank line.
func RenderSRT(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			srtTimestamp(seg.Start),
			srtTimestamp(seg.End),
			strings.TrimSpace(seg.Text),
		)
	}
	return b.String()
}

func srtTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
