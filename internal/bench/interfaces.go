package bench

// Recorder receives run and setup outcomes for metrics.
type Recorder interface {
	ObserveRun(r TestResult)
	ObserveSetup(tool string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(TestResult)     {}
func (nopRecorder) ObserveSetup(string, bool) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
