package nortek

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot_Add(t *testing.T) {
	a := MetricsSnapshot{CommandSendCount: 3, CommandAckCount: 2, SetupCount: 1, BreakRetryCount: 1}
	b := MetricsSnapshot{CommandSendCount: 4, CommandFailCount: 1, SetupFailCount: 2, ModeChangeCount: 5}

	sum := a.Add(b)
	assert.Equal(t, MetricsSnapshot{
		CommandSendCount: 7,
		CommandAckCount:  2,
		CommandFailCount: 1,
		BreakRetryCount:  1,
		ModeChangeCount:  5,
		SetupCount:       1,
		SetupFailCount:   2,
	}, sum)
	assert.Equal(t, sum, b.Add(a))
	assert.Equal(t, a, a.Add(MetricsSnapshot{}))
}
