package errclass

import "fmt"

// StatsError is a stable, machine-readable error class.
type StatsError struct {
	Code    string
	Message string
}

func (e *StatsError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StatsError) Is(target error) bool {
	t, ok := target.(*StatsError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new StatsError with the same Code but a specific message.
func (e *StatsError) WithMessage(msg string) *StatsError {
	return &StatsError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new StatsError with a formatted message.
func (e *StatsError) WithMessagef(format string, args ...any) *StatsError {
	return &StatsError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes for v0.x (9 total).
var (
	ErrIndexCorrupt       = &StatsError{Code: "E_INDEX_CORRUPT"}
	ErrIndexVersion       = &StatsError{Code: "E_INDEX_VERSION"}
	ErrSnapshotCorrupt    = &StatsError{Code: "E_SNAPSHOT_CORRUPT"}
	ErrSnapshotStale      = &StatsError{Code: "E_SNAPSHOT_STALE"}
	ErrGenerationConflict = &StatsError{Code: "E_GENERATION_CONFLICT"}
	ErrFileTruncated      = &StatsError{Code: "E_FILE_TRUNCATED"}
	ErrDecoderUnknown     = &StatsError{Code: "E_DECODER_UNKNOWN"}
	ErrWatchUnavailable   = &StatsError{Code: "E_WATCH_UNAVAILABLE"}
	ErrHomeUnavailable    = &StatsError{Code: "E_HOME_UNAVAILABLE"}
)
