// Package model defines the job value object, its on-disk JSON envelope,
// and the queue entry state machine.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultType is assigned to jobs whose envelope carries no jobType key.
// Older producers wrote envelopes without one.
const DefaultType = "task"

// Job is an immutable unit of work. Two jobs are equal when their IDs match.
type Job struct {
	ID      string
	Type    string
	Payload string
}

// New constructs a job with a fresh identity.
func New(jobType, payload string) Job {
	if jobType == "" {
		jobType = DefaultType
	}
	return Job{ID: NewID(), Type: jobType, Payload: payload}
}

// Equal reports identity equality.
func (j Job) Equal(other Job) bool {
	return j.ID == other.ID
}

// envelope is the JSON representation stored in a queue entry file.
type envelope struct {
	JobID      string `json:"jobId"`
	JobType    string `json:"jobType,omitempty"`
	JobPayload string `json:"jobPayload"`
}

// Encode renders the job as its JSON envelope.
func Encode(j Job) ([]byte, error) {
	if j.ID == "" {
		return nil, fmt.Errorf("encode job: empty id")
	}
	data, err := json.Marshal(envelope{JobID: j.ID, JobType: j.Type, JobPayload: j.Payload})
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	return data, nil
}

// Decode parses a JSON envelope read from a queue entry file. name identifies
// the source file in error messages. Both jobId and jobPayload must be
// present; unknown keys are ignored.
func Decode(name string, data []byte) (Job, error) {
	if strings.TrimSpace(string(data)) == "" {
		return Job{}, &MalformedJobError{Name: name, Reason: "empty content"}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Job{}, &MalformedJobError{Name: name, Reason: "invalid JSON", Err: err}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Job{}, &MalformedJobError{Name: name, Reason: "invalid envelope", Err: err}
	}

	if _, ok := raw["jobId"]; !ok || env.JobID == "" {
		return Job{}, &MalformedJobError{Name: name, Reason: "missing jobId"}
	}
	if _, ok := raw["jobPayload"]; !ok {
		return Job{}, &MalformedJobError{Name: name, Reason: "missing jobPayload"}
	}

	jobType := env.JobType
	if jobType == "" {
		jobType = DefaultType
	}
	return Job{ID: env.JobID, Type: jobType, Payload: env.JobPayload}, nil
}

// MalformedJobError reports a queue entry whose content cannot be decoded
// into a Job. It is a per-job condition: the entry is resolved to the failed
// state and processing of other candidates continues.
type MalformedJobError struct {
	Name   string
	Reason string
	Err    error
}

func (e *MalformedJobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed job %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed job %s: %s", e.Name, e.Reason)
}

func (e *MalformedJobError) Unwrap() error {
	return e.Err
}
