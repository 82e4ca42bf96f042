package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeDurationSweep = "session:duration_sweep"
	TaskTypeRiskSweep     = "risk:sweep"
	TaskTypeRiskAssess    = "risk:assess"
	TaskTypeCleanupData   = "data:cleanup"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type RiskAssessPayload struct {
	UserID string `json:"user_id"`
}

type CleanupDataPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewDurationSweepTask walks every active session and enforces the
// maximum duration and reality-check cadence.
func NewDurationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDurationSweep, nil, asynq.Queue(QueueCritical))
}

// NewRiskSweepTask re-assesses every recently active user.
func NewRiskSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeRiskSweep, nil, asynq.Queue(QueueDefault))
}

// NewRiskAssessTask assesses a single user.
func NewRiskAssessTask(userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(RiskAssessPayload{UserID: userID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeRiskAssess, payload, asynq.Queue(QueueDefault)), nil
}

// NewCleanupDataTask purges delivered notifications older than the cutoff.
func NewCleanupDataTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(CleanupDataPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeCleanupData, payload, asynq.Queue(QueueLow)), nil
}
