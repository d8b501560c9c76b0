package media

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	fadeDuration  = 0.5
	subtitleStyle = "FontName=Arial,FontSize=24,PrimaryColour=&HFFFFFF&,OutlineColour=&H000000&,Outline=2"
)

var probeArgs = []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1"}

// Strategy is how audio and video of different lengths are combined.
type Strategy string

const (
	// StrategyLoop repeats the video until the audio ends; needs a re-encode.
	StrategyLoop Strategy = "loop"
	// StrategyDirect copies the video stream and cuts at the shorter input.
	StrategyDirect Strategy = "direct"
)

// ChooseStrategy loops the video only when the narration outlasts it.
func ChooseStrategy(videoDuration, audioDuration float64) Strategy {
	if audioDuration > videoDuration {
		return StrategyLoop
	}
	return StrategyDirect
}

// AudioFilters returns the -af chain in application order.
func AudioFilters(opts SyncOptions, audioDuration float64) []string {
	var filters []string
	if opts.Volume != 1 {
		filters = append(filters, "volume="+formatFloat(opts.Volume))
	}
	if opts.FadeIn {
		filters = append(filters, fmt.Sprintf("afade=t=in:st=0:d=%s", formatFloat(fadeDuration)))
	}
	if opts.FadeOut {
		start := math.Max(audioDuration-fadeDuration, 0)
		filters = append(filters, fmt.Sprintf("afade=t=out:st=%s:d=%s", formatFloat(start), formatFloat(fadeDuration)))
	}
	return filters
}

// SyncArgs builds the ffmpeg argument vector muxing audio onto video.
func SyncArgs(video, audio, out string, strategy Strategy, filters []string) []string {
	var args []string
	if strategy == StrategyLoop {
		args = append(args, "-stream_loop", "-1")
	}
	args = append(args, "-i", video, "-i", audio)
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}
	if strategy == StrategyLoop {
		args = append(args, "-c:v", "libx264")
	} else {
		args = append(args, "-c:v", "copy")
	}
	return append(args, "-c:a", "aac", "-shortest", "-y", out)
}

// CaptionArgs burns an SRT file into video.
func CaptionArgs(video, srt, out string) []string {
	filter := fmt.Sprintf("subtitles=%s:force_style='%s'", escapeFilterValue(srt), subtitleStyle)
	return []string{"-i", video, "-vf", filter, "-c:a", "copy", "-y", out}
}

// RetimeArgs rescales presentation timestamps by factor.
func RetimeArgs(video, out string, factor float64) []string {
	return []string{"-i", video, "-filter:v", fmt.Sprintf("setpts=%s*PTS", formatFloat(factor)), "-y", out}
}

// ProbeArgs asks ffprobe for the container duration only.
func ProbeArgs(file string) []string {
	return append(append([]string(nil), probeArgs...), file)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escapeFilterValue quotes the characters ffmpeg's filtergraph parser treats
// as separators inside an option value.
func escapeFilterValue(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`, `,`, `\,`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
