package metrics

import coremetrics "github.com/kilianp07/csim/core/metrics"

// MultiSink fans simulator events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordMeterSamples forwards the samples to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordMeterSamples(samples []coremetrics.MeterSample) error {
	for _, s := range m.Sinks {
		if err := s.RecordMeterSamples(samples); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransaction forwards transaction events.
func (m *MultiSink) RecordTransaction(ev coremetrics.TransactionEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.TransactionRecorder); ok {
			if err := rec.RecordTransaction(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStatus forwards status transitions.
func (m *MultiSink) RecordStatus(ev coremetrics.StatusEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.StatusRecorder); ok {
			if err := rec.RecordStatus(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRequest forwards request events when supported by the sink.
func (m *MultiSink) RecordRequest(ev coremetrics.RequestEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.RequestRecorder); ok {
			if err := rec.RecordRequest(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
