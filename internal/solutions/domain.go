// Package solutions manages exercise submissions. A submission is stored
// pending and graded asynchronously by the worker.
package solutions

import "time"

// Solution represents a submitted exercise solution.
type Solution struct {
	ID         int64
	UserID     int64
	ExerciseID int64
	Submitted  time.Time
	Duration   time.Duration
	Correct    bool
	Pending    bool
	Content    string
}

// Filter narrows a solution query. Zero values mean "no constraint", except
// Limit, which is the page size: a limit of zero selects no rows.
type Filter struct {
	ID         int64
	UserID     int64
	ExerciseID int64
	Offset     int
	Limit      int
}
