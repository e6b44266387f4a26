package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestUpdateActivePractices(t *testing.T) {
	UpdateActivePractices(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(ActivePracticesGauge))

	UpdateActivePractices(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(ActivePracticesGauge))
}

func TestActiveSessionsGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveSessionsGauge)

	IncreaseActiveSessions()
	assert.Equal(t, before+1, testutil.ToFloat64(ActiveSessionsGauge))

	DecreaseActiveSessions()
	assert.Equal(t, before, testutil.ToFloat64(ActiveSessionsGauge))
}
