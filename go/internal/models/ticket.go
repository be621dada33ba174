package models

// Ticket is an immutable snapshot of a work item pulled from the ticket source.
type Ticket struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Priority    string `json:"priority" yaml:"priority"`
	Status      string `json:"status" yaml:"status"`
	Assignee    string `json:"assignee" yaml:"assignee"`
	IssueType   string `json:"issueType,omitempty" yaml:"issue_type,omitempty"`
}

// SprintFilter narrows a ticket fetch to a sprint bucket.
type SprintFilter string

const (
	SprintActive  SprintFilter = "active"
	SprintFuture  SprintFilter = "future"
	SprintBacklog SprintFilter = "backlog"
)

// TicketFilters are the host-supplied filters for a ticket fetch.
type TicketFilters struct {
	Sprint     SprintFilter `json:"sprint,omitempty"`
	Assignee   string       `json:"assignee,omitempty"`
	Status     string       `json:"status,omitempty"`
	IssueType  string       `json:"issueType,omitempty"`
	Priority   string       `json:"priority,omitempty"`
	MaxResults int          `json:"maxResults,omitempty"`
}

// SourceConfig holds the credentials and endpoint of the external tracker.
// It lives only in server memory and is never sent to clients.
type SourceConfig struct {
	Domain           string `json:"domain"`
	Email            string `json:"email"`
	APIToken         string `json:"apiToken"`
	ProjectKey       string `json:"projectKey,omitempty"`
	StoryPointsField string `json:"storyPointsField,omitempty"`
}
