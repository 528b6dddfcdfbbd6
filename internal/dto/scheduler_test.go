package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSchedulerRequestStartDate(t *testing.T) {
	var req RunSchedulerRequest
	require.NoError(t, json.Unmarshal([]byte(`{"programId":"p1","numWeeks":2,"startDate":"2025-01-08","shift":"evening"}`), &req))
	assert.Equal(t, "p1", req.ProgramID)
	assert.Equal(t, 2, req.NumWeeks)
	assert.Equal(t, "evening", req.Shift)
	assert.Nil(t, req.StartDate, "date-only values are not pinned to UTC")
	assert.Equal(t, "2025-01-08", req.StartDay)

	require.NoError(t, json.Unmarshal([]byte(`{"programId":"p1","startDate":"2025-01-08T10:00:00-03:00"}`), &req))
	require.NotNil(t, req.StartDate)
	assert.Equal(t, time.Date(2025, time.January, 8, 13, 0, 0, 0, time.UTC), req.StartDate.UTC())
	assert.Empty(t, req.StartDay)

	require.NoError(t, json.Unmarshal([]byte(`{"programId":"p1"}`), &req))
	assert.Nil(t, req.StartDate)
	assert.Empty(t, req.StartDay)

	assert.Error(t, json.Unmarshal([]byte(`{"programId":"p1","startDate":"08/01/2025"}`), &req))
}
