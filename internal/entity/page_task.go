package entity

// TaskStatus is the lifecycle state of a single page analysis task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// AnalysisMode selects which passes run against a rendered page.
type AnalysisMode string

const (
	DesktopOnly       AnalysisMode = "desktop"
	DesktopPlusMobile AnalysisMode = "desktop+mobile"
	MobileOnly        AnalysisMode = "mobile"
)

// PageTask is one URL's analysis intent. It is created when the
// orchestrator enqueues a discovered URL and mutated only by the
// orchestrator until it reaches a terminal status.
type PageTask struct {
	URL          string
	AttemptIndex int // 0-based, bounded by the timeout schedule
	Status       TaskStatus
	Mode         AnalysisMode
}
