package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, ResultOK, Result(nil))
	assert.Equal(t, ResultError, Result(errors.New("x")))
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Polls.WithLabelValues("balances", ResultOK))
	Polls.WithLabelValues("balances", ResultOK).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Polls.WithLabelValues("balances", ResultOK)))

	done := Timer("tokens")
	done()
	assert.Equal(t, 1, testutil.CollectAndCount(Upstream))
}
