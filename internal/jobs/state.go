package jobs

import "image-stitcher/internal/domain"

// State is the lifecycle of the current job. It is one of Idle, Running,
// Completed or Failed.
type State interface {
	Status() domain.JobStatus
	sealed()
}

// Idle means nothing has been submitted.
type Idle struct{}

// Running means a submission is in flight.
type Running struct {
	JobID string
}

// Completed carries the location of the finished output.
type Completed struct {
	JobID      string
	OutputPath string
	MimeType   string
}

// Failed carries a user-displayable reason.
type Failed struct {
	JobID   string
	Message string
}

func (Idle) Status() domain.JobStatus      { return domain.JobStatusIdle }
func (Running) Status() domain.JobStatus   { return domain.JobStatusRunning }
func (Completed) Status() domain.JobStatus { return domain.JobStatusCompleted }
func (Failed) Status() domain.JobStatus    { return domain.JobStatusFailed }

func (Idle) sealed()      {}
func (Running) sealed()   {}
func (Completed) sealed() {}
func (Failed) sealed()    {}

// Snapshot flattens a state into the JSON shape used by the UI.
func Snapshot(state State, generation uint64) domain.Job {
	job := domain.Job{Generation: generation, Status: domain.JobStatusIdle}
	switch s := state.(type) {
	case Running:
		job.ID = s.JobID
		job.Status = domain.JobStatusRunning
	case Completed:
		job.ID = s.JobID
		job.Status = domain.JobStatusCompleted
		job.OutputPath = s.OutputPath
		job.MimeType = s.MimeType
	case Failed:
		job.ID = s.JobID
		job.Status = domain.JobStatusFailed
		job.Error = s.Message
	}
	return job
}
