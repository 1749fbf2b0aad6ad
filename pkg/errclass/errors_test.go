package errclass_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Piebald-AI/splitrail/pkg/errclass"
)

func TestStatsError_Error(t *testing.T) {
	err := errclass.ErrIndexCorrupt.WithMessage("index checksum mismatch")
	assert.Equal(t, "E_INDEX_CORRUPT: index checksum mismatch", err.Error())
}

func TestStatsError_Is(t *testing.T) {
	err := errclass.ErrIndexCorrupt.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrIndexCorrupt))
	require.False(t, errors.Is(err, errclass.ErrSnapshotStale))
}

func TestStatsError_Wrapped(t *testing.T) {
	err := errclass.ErrFileTruncated.WithMessagef("%s shrank to %d bytes", "a.jsonl", 12)
	wrapped := errors.Join(errors.New("outer"), err)
	require.True(t, errors.Is(wrapped, errclass.ErrFileTruncated))
}

func TestStatsError_Code(t *testing.T) {
	assert.Equal(t, "E_INDEX_CORRUPT", errclass.ErrIndexCorrupt.Code)
	assert.Equal(t, "E_GENERATION_CONFLICT", errclass.ErrGenerationConflict.Code)
}

func TestStatsError_AllErrorsDefined(t *testing.T) {
	// All 9 v0.x error classes must exist
	all := []error{
		errclass.ErrIndexCorrupt,
		errclass.ErrIndexVersion,
		errclass.ErrSnapshotCorrupt,
		errclass.ErrSnapshotStale,
		errclass.ErrGenerationConflict,
		errclass.ErrFileTruncated,
		errclass.ErrDecoderUnknown,
		errclass.ErrWatchUnavailable,
		errclass.ErrHomeUnavailable,
	}
	assert.Len(t, all, 9)
}
