package verify

// ProgressSink receives a report after every processed entry.
type ProgressSink interface {
	Report(current, total int)
}

// FailureSink receives failures as they are found, not batched.
type FailureSink interface {
	Report(f Failure)
}

type ProgressFunc func(current, total int)

func (fn ProgressFunc) Report(current, total int) {
	fn(current, total)
}

type FailureFunc func(f Failure)

func (fn FailureFunc) Report(f Failure) {
	fn(f)
}

func MultiProgress(sinks ...ProgressSink) ProgressSink {
	return multiProgress(sinks)
}

type multiProgress []ProgressSink

func (m multiProgress) Report(current, total int) {
	for _, s := range m {
		if s != nil {
			s.Report(current, total)
		}
	}
}

func MultiFailure(sinks ...FailureSink) FailureSink {
	return multiFailure(sinks)
}

type multiFailure []FailureSink

func (m multiFailure) Report(f Failure) {
	for _, s := range m {
		if s != nil {
			s.Report(f)
		}
	}
}
