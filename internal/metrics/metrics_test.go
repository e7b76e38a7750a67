package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(statusRecords.WithLabelValues("URLAUB", "manual"))
	IncStatusRecord("URLAUB", "manual")
	assert.Equal(t, before+1, testutil.ToFloat64(statusRecords.WithLabelValues("URLAUB", "manual")))

	SetOpenNow(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(openNow))
	SetOpenNow(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(openNow))
}
