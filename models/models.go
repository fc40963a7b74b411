// Package models contains the wire types shared by the CacheFS master and
// job master clients.
package models

// Status is the state of a load job as reported by the job master.
type Status string

const StatusCreated = Status("CREATED")
const StatusRunning = Status("RUNNING")
const StatusCompleted = Status("COMPLETED")
const StatusCanceled = Status("CANCELED")
const StatusFailed = Status("FAILED")

// Terminal reports whether the job finished successfully (from the
// dispatcher's point of view, a canceled job is finished) and should not be
// polled again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// LoadJob describes one file load. Set once at creation, never mutated.
type LoadJob struct {
	Path        string `json:"path"`
	Replication int    `json:"replication"`
}

// JobInfo is the job master's description of a submitted job.
type JobInfo struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// FileStatus describes one entry in the CacheFS namespace. The percentage
// counts how much of the file is already resident in cluster memory.
type FileStatus struct {
	Path               string `json:"path"`
	Folder             bool   `json:"folder"`
	InMemoryPercentage int    `json:"in_memory_percentage"`
}
