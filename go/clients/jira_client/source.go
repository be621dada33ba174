package jira_client

import (
	"context"
	"net/http"
	"time"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

// Source fetches and updates tickets in whichever Jira site the host has
// configured. A client is built per call from the configuration.
type Source struct {
	scheme     string
	httpClient *http.Client
}

// NewSource creates a source whose HTTP calls time out after timeout.
func NewSource(timeout time.Duration) *Source {
	return &Source{
		scheme:     "https",
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *Source) client(cfg models.SourceConfig) *JiraClient {
	c := NewJiraClient(s.scheme+"://"+cfg.Domain, cfg.Email, cfg.APIToken)
	c.SetHTTPClient(s.httpClient)
	return c
}

// FetchTickets searches the configured project using filters.
func (s *Source) FetchTickets(ctx context.Context, cfg models.SourceConfig, filters models.TicketFilters) ([]models.Ticket, error) {
	return s.client(cfg).SearchIssues(ctx, BuildJQL(cfg.ProjectKey, filters), filters.MaxResults)
}

// UpdateEstimate writes value into the configured story points field.
func (s *Source) UpdateEstimate(ctx context.Context, cfg models.SourceConfig, ticketID string, value float64) error {
	field := cfg.StoryPointsField
	if field == "" {
		field = DefaultStoryPointsField
	}
	return s.client(cfg).UpdateStoryPoints(ctx, ticketID, field, value)
}
