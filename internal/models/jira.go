package models

import "time"

// UnassignedSentinel is the assignee reported for issues with no assignee
const UnassignedSentinel = "Unassigned"

// JiraIssueState is the authoritative state of one JIRA issue
type JiraIssueState struct {
	Key       string    `json:"key"`
	Status    string    `json:"status"`
	Assignee  string    `json:"assignee"`
	Summary   string    `json:"summary"`
	UpdatedAt time.Time `json:"updated_at"`
}
