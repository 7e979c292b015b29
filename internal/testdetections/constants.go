package testdetections

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
)

// Detection statuses reported by the service.
const (
	statusQueued    = "queued"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)
