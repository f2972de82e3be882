package host

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"lumen/internal/value"
)

// timeNowUnix backs native("time.now_unix"), the only wall-clock seam the
// language exposes; there's no Date/duration type, only the int64 result.
func timeNowUnix(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Null, fmt.Errorf("time.now_unix expects no arguments, got %d", len(args))
	}
	return value.Int(time.Now().Unix()), nil
}

// uuidNew backs native("uuid.new"), used by scripts that need an opaque
// identifier (e.g. a cache key or a correlation ID to log alongside a
// db.query call) without reaching for time.now_unix-based ad hoc IDs.
func uuidNew(args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Null, fmt.Errorf("uuid.new expects no arguments, got %d", len(args))
	}
	return value.Str(value.NewStr(uuid.New().String())), nil
}
