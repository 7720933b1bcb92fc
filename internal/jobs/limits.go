package jobs

// Worker slot limits
const (
	MinWorkers     = 1
	MaxWorkers     = 16
	DefaultWorkers = 3
)

// ClampWorkerCount ensures the worker count is within valid bounds.
func ClampWorkerCount(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
