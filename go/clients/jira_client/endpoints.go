package jira_client

const (
	// API Endpoints
	SearchEndpoint = "/rest/api/3/search/jql"
	IssueEndpoint  = "/rest/api/3/issue/"

	// Search limits
	DefaultMaxResults = 50
	MaxResultsLimit   = 100

	// DefaultStoryPointsField is the story points custom field on most Jira Cloud sites.
	DefaultStoryPointsField = "customfield_10016"

	// Headers
	AuthorizationHeader = "Authorization"
	AcceptHeader        = "Accept"
	ContentTypeHeader   = "Content-Type"
	JSONContentType     = "application/json"
)

// searchFields are the issue fields mapped onto tickets.
var searchFields = []string{"summary", "description", "status", "priority", "assignee", "issuetype"}
