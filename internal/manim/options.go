// Package manim renders animation scripts with the manim CLI and relocates
// the produced video into the public animations directory.
package manim

import "fmt"

// Quality selects manim's render preset.
type Quality string

const (
	QualityLow        Quality = "low"
	QualityMedium     Quality = "medium"
	QualityHigh       Quality = "high"
	QualityProduction Quality = "production"
)

var qualityFlags = map[Quality]string{
	QualityLow:        "-ql",
	QualityMedium:     "-qm",
	QualityHigh:       "-qh",
	QualityProduction: "-qk",
}

// Flag returns the CLI flag for q.
func (q Quality) Flag() (string, bool) {
	f, ok := qualityFlags[q]
	return f, ok
}

// Format is the output container.
type Format string

const (
	FormatMP4 Format = "mp4"
	FormatMOV Format = "mov"
	FormatGIF Format = "gif"
)

func (f Format) valid() bool {
	switch f {
	case FormatMP4, FormatMOV, FormatGIF:
		return true
	}
	return false
}

// Options controls a single render.
type Options struct {
	Quality     Quality `json:"quality"`
	Format      Format  `json:"format"`
	Transparent bool    `json:"transparent"`
	FPS         int     `json:"fps"`
}

// DefaultOptions returns high quality mp4 at 60 fps.
func DefaultOptions() Options {
	return Options{Quality: QualityHigh, Format: FormatMP4, FPS: 60}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Quality == "" {
		o.Quality = d.Quality
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	if o.FPS == 0 {
		o.FPS = d.FPS
	}
	return o
}

// Validate rejects unknown qualities and formats and non-positive fps.
func (o Options) Validate() error {
	if _, ok := o.Quality.Flag(); !ok {
		return fmt.Errorf("unknown quality %q", o.Quality)
	}
	if !o.Format.valid() {
		return fmt.Errorf("unknown format %q", o.Format)
	}
	if o.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", o.FPS)
	}
	return nil
}

// BuildArgs assembles the manim argument vector.
func BuildArgs(id, scriptPath string, o Options) []string {
	flag, _ := o.Quality.Flag()
	args := []string{flag}
	if o.Transparent {
		args = append(args, "--transparent")
	}
	args = append(args,
		"--format", string(o.Format),
		"--fps", fmt.Sprintf("%d", o.FPS),
		"-o", fmt.Sprintf("%s.%s", id, o.Format),
		scriptPath,
	)
	return args
}
