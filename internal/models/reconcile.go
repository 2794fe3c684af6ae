package models

// StatusChange is one proposed edit of a reported JIRA status
type StatusChange struct {
	JiraID string `json:"jira_id"`
	Old    string `json:"old"`
	New    string `json:"new"`
}

// ReportRow is a JIRA row located in an existing report
type ReportRow struct {
	JiraID         string `json:"jira_id"`
	ReportedStatus string `json:"reported_status"`
	Line           int    `json:"line"`
	// StatusStart and StatusEnd are byte offsets of the status token.
	StatusStart int `json:"-"`
	StatusEnd   int `json:"-"`
}

// ReconcileResult is the outcome of reconciling one report file
type ReconcileResult struct {
	UpdatesMade int               `json:"updates_made"`
	Changes     []StatusChange    `json:"changes"`
	ReportPath  string            `json:"report_path"`
	BackupPath  string            `json:"backup_path,omitempty"`
	Applied     bool              `json:"applied"`
	Diff        string            `json:"diff,omitempty"`
	Content     string            `json:"-"`
	Warnings    []string          `json:"warnings,omitempty"`
	Issues      []ValidationIssue `json:"issues,omitempty"`
}
