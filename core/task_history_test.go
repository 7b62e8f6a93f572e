package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func namedHistoryBody(context.Context) {}

// TestExecutionHistory_LimitAndOrder verifies the ring buffer
// Given: A history of capacity 3 with 5 records added
// When: Recent is called with various limits
// Then: The newest 3 come back newest first
func TestExecutionHistory_LimitAndOrder(t *testing.T) {
	h := newExecutionHistory(3)

	_, ok := h.Last()
	assert.False(t, ok)
	assert.Nil(t, h.Recent(10))

	for i := 1; i <= 5; i++ {
		h.Add(JobExecutionRecord{JobID: JobID(i), FinishedAt: time.Unix(int64(i), 0)})
	}

	recent := h.Recent(0)
	if assert.Len(t, recent, 3) {
		assert.Equal(t, []JobID{5, 4, 3}, []JobID{recent[0].JobID, recent[1].JobID, recent[2].JobID})
	}
	assert.Len(t, h.Recent(2), 2)

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, JobID(5), last.JobID)
}

func TestExecutionHistory_DefaultCapacity(t *testing.T) {
	h := newExecutionHistory(0)
	assert.Len(t, h.items, defaultJobHistoryCapacity)
}

// TestResolveJobName verifies explicit names win and functions fall back to their symbol
func TestResolveJobName(t *testing.T) {
	assert.Equal(t, "explicit", resolveJobName(namedHistoryBody, "explicit"))
	assert.Contains(t, resolveJobName(namedHistoryBody, ""), "namedHistoryBody")
	assert.Equal(t, "anonymous", resolveJobName(nil, ""))
}
