// Package jobs keeps an audit history of render and media runs.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeRender   = "render"
	TypeSync     = "sync"
	TypeCaptions = "captions"
	TypeRetime   = "retime"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is one recorded tool run. Nothing in the pipeline reads it back.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Attempt    int       `json:"attempt"`
	Quality    string    `json:"quality,omitempty"`
	InputPath  string    `json:"inputPath,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Filter narrows List.
type Filter struct {
	Type   string
	Status string
	Limit  int
}

func NewID() string {
	return uuid.NewString()
}
