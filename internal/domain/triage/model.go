package triage

import (
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

const EntityRequest = "request"

const (
	StatusPending   = "pending"
	StatusReviewed  = "reviewed"
	StatusUrgent    = "urgent"
	StatusCompleted = "completed"
)

// Machine is the health request lifecycle. Review marks a request either
// reviewed or urgent; both close as completed.
var Machine = lifecycle.NewMachine(EntityRequest, StatusPending, map[string][]string{
	StatusPending:  {StatusReviewed, StatusUrgent},
	StatusReviewed: {StatusCompleted},
	StatusUrgent:   {StatusCompleted},
})

var StatusLabels = map[string]locale.Text{
	StatusPending:   {English: "Pending", Telugu: "పెండింగ్"},
	StatusReviewed:  {English: "Reviewed", Telugu: "సమీక్షించబడింది"},
	StatusUrgent:    {English: "Urgent", Telugu: "అత్యవసర"},
	StatusCompleted: {English: "Completed", Telugu: "పూర్తయింది"},
}

// HealthRequest is a patient's report of one symptom. Symptom holds the
// catalog id and Date the ISO day it was submitted.
type HealthRequest struct {
	ID       string `db:"id" json:"id"`
	UserID   string `db:"user_id" json:"userId"`
	Symptom  string `db:"symptom" json:"symptom"`
	Duration int    `db:"duration" json:"duration"`
	Date     string `db:"date" json:"date"`
	Status   string `db:"status" json:"status"`
}

func (r *HealthRequest) Clone() *HealthRequest {
	c := *r
	return &c
}

// Entry is one symptom of a submission batch.
type Entry struct {
	Symptom  string `json:"symptom"`
	Duration int    `json:"duration"`
}

// HealthStats summarises a patient's requests.
type HealthStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}
