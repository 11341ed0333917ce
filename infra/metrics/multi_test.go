package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	coremetrics "github.com/kilianp07/csim/core/metrics"
)

// countingSink implements the full recorder surface.
type countingSink struct {
	samples      int
	transactions int
	statuses     int
	requests     int
}

func (s *countingSink) RecordMeterSamples(in []coremetrics.MeterSample) error {
	s.samples += len(in)
	return nil
}
func (s *countingSink) RecordTransaction(coremetrics.TransactionEvent) error {
	s.transactions++
	return nil
}
func (s *countingSink) RecordStatus(coremetrics.StatusEvent) error {
	s.statuses++
	return nil
}
func (s *countingSink) RecordRequest(coremetrics.RequestEvent) error {
	s.requests++
	return nil
}

func TestMultiSinkFanOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{}
	m := NewMultiSink(a, b, coremetrics.NopSink{})

	assert.NoError(t, m.RecordMeterSamples([]coremetrics.MeterSample{{}, {}}))
	assert.NoError(t, m.RecordTransaction(coremetrics.TransactionEvent{}))
	assert.NoError(t, m.RecordStatus(coremetrics.StatusEvent{}))
	assert.NoError(t, m.RecordRequest(coremetrics.RequestEvent{}))

	for _, s := range []*countingSink{a, b} {
		assert.Equal(t, 2, s.samples)
		assert.Equal(t, 1, s.transactions)
		assert.Equal(t, 1, s.statuses)
		assert.Equal(t, 1, s.requests)
	}
}

func TestPromSinkRegistrationIdempotent(t *testing.T) {
	cfg := coremetrics.Config{}
	_, err := NewPromSink(cfg)
	assert.NoError(t, err)
	// Re-registering on the default registerer reuses the collectors.
	_, err = NewPromSink(cfg)
	assert.NoError(t, err)
}
