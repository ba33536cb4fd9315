package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunTrigger string

const (
	TriggerCLI      RunTrigger = "cli"
	TriggerHTTP     RunTrigger = "http"
	TriggerSchedule RunTrigger = "schedule"
)

// ScoutRun is one batch invocation over a list of channels.
type ScoutRun struct {
	ID             int64      `json:"id" db:"id"`
	RunUUID        string     `json:"run_uuid" db:"run_uuid"`
	Trigger        RunTrigger `json:"trigger" db:"trigger"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	ChannelsTotal  int        `json:"channels_total" db:"channels_total"`
	ChannelsFailed int        `json:"channels_failed" db:"channels_failed"`
	OutliersFound  int        `json:"outliers_found" db:"outliers_found"`
	OutliersSaved  int        `json:"outliers_saved" db:"outliers_saved"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
}
