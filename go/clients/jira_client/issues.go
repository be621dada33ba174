package jira_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

type namedField struct {
	Name string `json:"name"`
}

type assigneeField struct {
	DisplayName string `json:"displayName"`
}

type issueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	Priority    *namedField     `json:"priority"`
	Status      *namedField     `json:"status"`
	Assignee    *assigneeField  `json:"assignee"`
	IssueType   *namedField     `json:"issuetype"`
}

type Issue struct {
	Key    string      `json:"key"`
	Fields issueFields `json:"fields"`
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

type SearchResponse struct {
	Issues []Issue `json:"issues"`
}

// adfNode is a node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// BuildJQL turns a project key and fetch filters into a JQL query.
func BuildJQL(projectKey string, filters models.TicketFilters) string {
	var parts []string

	if projectKey != "" {
		parts = append(parts, "project = "+projectKey)
	}

	switch filters.Sprint {
	case models.SprintActive:
		parts = append(parts, "sprint in openSprints()")
	case models.SprintFuture:
		parts = append(parts, "sprint in futureSprints()")
	case models.SprintBacklog:
		parts = append(parts, "sprint is EMPTY")
	}

	equals := []struct {
		field string
		value string
	}{
		{"assignee", filters.Assignee},
		{"status", filters.Status},
		{"issuetype", filters.IssueType},
		{"priority", filters.Priority},
	}
	for _, eq := range equals {
		if eq.value != "" {
			parts = append(parts, fmt.Sprintf("%s = %s", eq.field, quoteJQL(eq.value)))
		}
	}

	if len(parts) == 0 {
		return "order by created DESC"
	}
	return strings.Join(parts, " AND ")
}

func quoteJQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func clampMaxResults(n int) int {
	if n <= 0 {
		return DefaultMaxResults
	}
	if n > MaxResultsLimit {
		return MaxResultsLimit
	}
	return n
}

// SearchIssues runs a JQL search and maps the issues to tickets.
func (c *JiraClient) SearchIssues(ctx context.Context, jql string, maxResults int) ([]models.Ticket, error) {
	body, err := json.Marshal(searchRequest{
		JQL:        jql,
		MaxResults: clampMaxResults(maxResults),
		Fields:     searchFields,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	respBody, err := c.Post(ctx, SearchEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, wrapError(err, "", "failed to fetch from Jira API")
	}

	var response SearchResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal search response: %w", err)
	}

	tickets := make([]models.Ticket, 0, len(response.Issues))
	for _, issue := range response.Issues {
		tickets = append(tickets, issue.toTicket())
	}
	return tickets, nil
}

// UpdateStoryPoints writes an estimate into the given issue field.
func (c *JiraClient) UpdateStoryPoints(ctx context.Context, issueKey, field string, points float64) error {
	body, err := json.Marshal(map[string]any{
		"fields": map[string]any{field: points},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal update request: %w", err)
	}

	if _, err := c.Put(ctx, IssueEndpoint+url.PathEscape(issueKey), bytes.NewReader(body)); err != nil {
		return wrapError(err, field, "failed to update Jira story points")
	}
	return nil
}

func (i Issue) toTicket() models.Ticket {
	t := models.Ticket{
		ID:          i.Key,
		Title:       i.Fields.Summary,
		Description: descriptionText(i.Fields.Description),
		Priority:    "Medium",
		Status:      "Unknown",
		Assignee:    "Unassigned",
		IssueType:   "Task",
	}
	if i.Fields.Priority != nil && i.Fields.Priority.Name != "" {
		t.Priority = i.Fields.Priority.Name
	}
	if i.Fields.Status != nil && i.Fields.Status.Name != "" {
		t.Status = i.Fields.Status.Name
	}
	if i.Fields.Assignee != nil && i.Fields.Assignee.DisplayName != "" {
		t.Assignee = i.Fields.Assignee.DisplayName
	}
	if i.Fields.IssueType != nil && i.Fields.IssueType.Name != "" {
		t.IssueType = i.Fields.IssueType.Name
	}
	return t
}

const noDescription = "No description available"

// descriptionText returns the text of the first paragraph of an ADF
// description, or a plain string description as is.
func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return noDescription
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		if plain == "" {
			return noDescription
		}
		return plain
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc.Content) == 0 {
		return noDescription
	}
	var sb strings.Builder
	for _, node := range doc.Content[0].Content {
		sb.WriteString(node.Text)
	}
	if sb.Len() == 0 {
		return noDescription
	}
	return sb.String()
}
