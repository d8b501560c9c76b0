package pipelines

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns "<prefix>_<unix-ms>_<suffix>". Uniqueness rests on the
// timestamp plus an 8-character random suffix.
func NewRunID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}
