package jira_client

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/mcdev12/planningpoker/go/clients"
)

type JiraClient struct {
	*clients.BaseClient
}

// NewJiraClient creates a client for the Jira Cloud site at baseURL using
// basic auth with an account email and API token.
func NewJiraClient(baseURL, email, apiToken string) *JiraClient {
	client := &JiraClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	auth := base64.StdEncoding.EncodeToString([]byte(email + ":" + apiToken))
	client.SetHeader(AuthorizationHeader, "Basic "+auth)
	client.SetHeader(AcceptHeader, JSONContentType)
	client.SetHeader(ContentTypeHeader, JSONContentType)

	return client
}

// Error is a Jira failure with a message fit to show the host.
type Error struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError converts a transport or API failure into an *Error.
func wrapError(err error, field, fallback string) error {
	var apiErr *clients.APIError
	if !errors.As(err, &apiErr) {
		return &Error{Message: fallback + ": " + err.Error(), Err: err}
	}
	return &Error{
		Message:    apiErrorMessage(apiErr, field, fallback),
		StatusCode: apiErr.StatusCode,
		Err:        err,
	}
}

type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// apiErrorMessage pulls the most specific message out of a Jira error body.
// field, when set, selects a field-level error.
func apiErrorMessage(apiErr *clients.APIError, field, fallback string) string {
	var body errorResponse
	if json.Unmarshal(apiErr.Body, &body) != nil {
		return fallback
	}
	if len(body.ErrorMessages) > 0 && body.ErrorMessages[0] != "" {
		return body.ErrorMessages[0]
	}
	if field != "" {
		if msg, ok := body.Errors[field]; ok && msg != "" {
			return msg
		}
	}
	for _, msg := range body.Errors {
		if msg != "" {
			return msg
		}
	}
	return fallback
}
