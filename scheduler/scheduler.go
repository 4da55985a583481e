package scheduler

// Package scheduler runs the ETL pipeline on a fixed cadence. Each trigger
// makes one attempt, and on failure waits the retry delay and makes exactly
// one more before the run is reported as failed. Runs never overlap.
//
// The scheduler is implemented in jobs.go
