package edl

import (
	"fmt"
	"math"
	"strings"

	"github.com/clipsmith/clipsmith-agent/internal/interval"
)

// Generate renders a resolved kept-segment list as a CMX 3600 EDL so the
// cut can be re-imported into other editors. Every segment becomes one cut
// event against a single source reel; record timecodes run contiguously
// from zero.
func Generate(segments []interval.Interval, title, mediaPath string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	var recordOffset int64
	for i, seg := range segments {
		srcIn := msToFrameTimecode(int64(seg.Start), fps)
		srcOut := msToFrameTimecode(int64(seg.End), fps)
		recIn := msToFrameTimecode(recordOffset, fps)
		durationMs := int64(seg.Duration())
		recOut := msToFrameTimecode(recordOffset+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  segment %03d", i+1),
			fmt.Sprintf("* MEDIA PATH:  %s", mediaPath),
		)

		recordOffset += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func msToFrameTimecode(ms int64, fps int) string {
	totalFrames := int64(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % int64(fps)
	totalSeconds := totalFrames / int64(fps)
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
