// Package jobs defines the background task types and the Asynq worker that
// processes them.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeGradeSolution is the task type for grading a submitted
	// solution.
	TaskTypeGradeSolution = "solution:grade"
)

// GradeSolutionPayload identifies the submission to grade.
type GradeSolutionPayload struct {
	SolutionID int64 `json:"solution_id"`
}

// NewGradeSolutionTask constructs an Asynq task.
func NewGradeSolutionTask(payload GradeSolutionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeGradeSolution, data), nil
}

// Grader grades a stored submission. Implemented by the solutions service.
type Grader interface {
	Grade(ctx context.Context, solutionID int64) error
}

// HandleGradeSolutionTask returns the handler for TaskTypeGradeSolution
// tasks.
func HandleGradeSolutionTask(grader Grader) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload GradeSolutionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return grader.Grade(ctx, payload.SolutionID)
	}
}
