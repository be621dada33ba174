// Package validation holds the pure input checks that sit between untrusted
// client payloads and session state.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/planningpoker/go/internal/models"
)

const (
	// MaxDisplayNameLength bounds a sanitized display name, in characters.
	MaxDisplayNameLength = 50
	// MaxFinalValue is the upper bound for a host-set final estimate.
	MaxFinalValue = 1000
	// DefaultStoryPointsField is the Jira field written when none is configured.
	DefaultStoryPointsField = "customfield_10016"
)

var (
	ErrEmptyDisplayName   = errors.New("display name is required")
	ErrDisplayNameTooLong = fmt.Errorf("display name must be at most %d characters", MaxDisplayNameLength)
	ErrInvalidVote        = errors.New("invalid vote value")
	ErrInvalidFinalValue  = fmt.Errorf("final value must be null or a number between 0 and %d", MaxFinalValue)
	ErrInvalidTicketIndex = errors.New("invalid ticket index")
	ErrInvalidSource      = errors.New("invalid ticket source configuration")
)

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	projectKeyRE    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,31}$`)
	fieldIDRE       = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)
	schemePrefixRE  = regexp.MustCompile(`^https?://`)
	domainPatternRE = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]{0,251}[A-Za-z0-9])?(:[0-9]{1,5})?$`)
)

// voteValues is the recognized estimate deck.
var voteValues = map[models.Vote]struct{}{
	"0": {}, "1": {}, "2": {}, "3": {}, "5": {}, "8": {}, "13": {}, "21": {},
	models.VoteUnknown:  {},
	models.VoteInfinity: {},
}

// SanitizeDisplayName strips markup, trims and bounds a display name.
func SanitizeDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(tagPattern.ReplaceAllString(raw, ""))
	if name == "" {
		return "", ErrEmptyDisplayName
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return "", ErrDisplayNameTooLong
	}
	return name, nil
}

// IsValidVote reports whether value belongs to the deck. Numbers and their
// string form are equivalent, so 5 and "5" both pass.
func IsValidVote(value any) bool {
	_, ok := canonicalVote(value)
	return ok
}

// ParseVote decodes a raw JSON vote and returns its canonical form.
func ParseVote(raw json.RawMessage) (models.Vote, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrInvalidVote
	}
	var value any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidVote, err)
	}
	vote, ok := canonicalVote(value)
	if !ok {
		return "", ErrInvalidVote
	}
	return vote, nil
}

func canonicalVote(value any) (models.Vote, bool) {
	var s string
	switch v := value.(type) {
	case string:
		s = strings.TrimSpace(v)
	case json.Number:
		s = v.String()
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	vote := models.Vote(s)
	if _, ok := voteValues[vote]; !ok {
		return "", false
	}
	return vote, true
}

// IsValidFinalValue accepts nil or a finite number in [0, MaxFinalValue].
func IsValidFinalValue(value *float64) bool {
	if value == nil {
		return true
	}
	v := *value
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= 0 && v <= MaxFinalValue
}

// IsValidTicketIndex reports whether i addresses an element of a queue of
// the given length.
func IsValidTicketIndex(i, queueLength int) bool {
	return i >= 0 && i < queueLength
}

// SanitizeFreeText strips markup and truncates to maxLen characters.
func SanitizeFreeText(s string, maxLen int) string {
	s = strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// SanitizeFilters cleans host-supplied fetch filters.
func SanitizeFilters(f models.TicketFilters) models.TicketFilters {
	switch f.Sprint {
	case models.SprintActive, models.SprintFuture, models.SprintBacklog:
	default:
		f.Sprint = ""
	}
	f.Assignee = SanitizeFreeText(f.Assignee, 100)
	f.Status = SanitizeFreeText(f.Status, 50)
	f.IssueType = SanitizeFreeText(f.IssueType, 50)
	f.Priority = SanitizeFreeText(f.Priority, 50)
	if f.MaxResults < 0 {
		f.MaxResults = 0
	}
	return f
}

// ValidateSourceConfig normalizes and checks a ticket source configuration.
// The returned config has its domain stripped of scheme and trailing slash and
// a story points field filled in.
func ValidateSourceConfig(cfg models.SourceConfig) (models.SourceConfig, error) {
	domain := strings.TrimSpace(cfg.Domain)
	domain = schemePrefixRE.ReplaceAllString(domain, "")
	domain = strings.TrimRight(domain, "/")
	if !domainPatternRE.MatchString(domain) {
		return models.SourceConfig{}, fmt.Errorf("%w: domain", ErrInvalidSource)
	}

	email := strings.TrimSpace(cfg.Email)
	if email == "" || !strings.Contains(email, "@") || len(email) > 254 {
		return models.SourceConfig{}, fmt.Errorf("%w: email", ErrInvalidSource)
	}

	token := strings.TrimSpace(cfg.APIToken)
	if token == "" || len(token) > 512 {
		return models.SourceConfig{}, fmt.Errorf("%w: api token", ErrInvalidSource)
	}

	project := strings.TrimSpace(cfg.ProjectKey)
	if project != "" && !projectKeyRE.MatchString(project) {
		return models.SourceConfig{}, fmt.Errorf("%w: project key", ErrInvalidSource)
	}

	field := strings.TrimSpace(cfg.StoryPointsField)
	if field == "" {
		field = DefaultStoryPointsField
	}
	if !fieldIDRE.MatchString(field) {
		return models.SourceConfig{}, fmt.Errorf("%w: story points field", ErrInvalidSource)
	}

	return models.SourceConfig{
		Domain:           domain,
		Email:            email,
		APIToken:         token,
		ProjectKey:       strings.ToUpper(project),
		StoryPointsField: field,
	}, nil
}
