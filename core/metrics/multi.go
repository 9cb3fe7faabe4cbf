package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDecision forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordDecision(d DecisionMetric) error {
	for _, s := range m.Sinks {
		if err := s.RecordDecision(d); err != nil {
			return err
		}
	}
	return nil
}

// RecordAttempt forwards attempt metrics when supported by the sink.
func (m *MultiSink) RecordAttempt(a AttemptMetric) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(AttemptRecorder); ok {
			if err := rec.RecordAttempt(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordExecution forwards execution metrics when supported by the sink.
func (m *MultiSink) RecordExecution(e ExecutionMetric) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ExecutionRecorder); ok {
			if err := rec.RecordExecution(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() { closeSinks(m.Sinks) }
