// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package job

// EventType enumerates job lifecycle events.
type EventType string

const (
	// EventSubmitted is emitted when a job is registered.
	EventSubmitted EventType = "submitted"
	// EventRunning is emitted when a worker picks the job up.
	EventRunning EventType = "running"
	// EventFinished is emitted when a job completes successfully.
	EventFinished EventType = "finished"
	// EventFailed is emitted when a job completes with an error.
	EventFailed EventType = "failed"
)

// Event carries a job snapshot taken at the transition.
type Event struct {
	Type EventType `json:"type"`
	Job  Info      `json:"job"`
}
