// Package calendar is a thin Google Calendar REST client used by MCP tool
// dispatch once the Authorization Gate has produced a usable token.
// Grounded on original_source/src/google_calendar/mod.rs
// (GoogleCalendarClient), translated field-for-field; event deletion is
// intentionally not exposed (SPEC_FULL.md §12 supplement — the original
// client exposes none either).
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
)

const defaultCalendarID = "primary"
const userAgent = "calendar-bridge/0.1.0"

// Client is a thin wrapper over the Google Calendar v3 REST API.
type Client struct {
	http              *http.Client
	apiBase           string
	defaultCalendarID string
}

// New constructs a Client. apiBase is normalized to end with a trailing
// slash, matching Google's actual "https://www.googleapis.com/calendar/v3/"
// base.
func New(apiBase string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	normalized := strings.TrimSpace(apiBase)
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	return &Client{http: httpClient, apiBase: normalized, defaultCalendarID: defaultCalendarID}
}

// WithDefaultCalendar overrides the calendar used when a call omits one.
func (c *Client) WithDefaultCalendar(calendarID string) *Client {
	if calendarID != "" {
		c.defaultCalendarID = calendarID
	}
	return c
}

func (c *Client) resolveCalendar(override string) string {
	if override != "" {
		return override
	}
	return c.defaultCalendarID
}

func (c *Client) calendarURL(calendarID, path string) string {
	return c.apiBase + "calendars/" + url.PathEscape(calendarID) + "/" + path
}

// ListEventsParams are the query parameters for ListEvents.
type ListEventsParams struct {
	CalendarID       string
	TimeMin          *time.Time
	TimeMax          *time.Time
	MaxResults       int
	PageToken        string
	Query            string
	SingleEvents     bool
	OrderByStartTime bool
}

// ListEventsResponse is the paginated response from the events.list API.
type ListEventsResponse struct {
	Kind          string          `json:"kind,omitempty"`
	Summary       string          `json:"summary,omitempty"`
	Items         []CalendarEvent `json:"items"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

// EventDateTime mirrors Google Calendar's event.start/event.end shape:
// either an RFC3339 dateTime with an optional IANA time zone, or (for
// all-day events) a bare date — only the dateTime form is modeled here, per
// the original client.
type EventDateTime struct {
	DateTime *time.Time `json:"dateTime,omitempty"`
	TimeZone string     `json:"timeZone,omitempty"`
}

// eventDateTimeObject is the object wire shape of EventDateTime, used as the
// unmarshal target for the non-string branch below.
type eventDateTimeObject struct {
	DateTime *time.Time `json:"dateTime"`
	TimeZone string     `json:"timeZone"`
}

// UnmarshalJSON accepts either a bare RFC3339 string or the object form,
// mirroring original_source/src/google_calendar/mod.rs's untagged
// Repr::String/Repr::Object deserialize. Google itself only ever sends the
// object form; the string form is accepted for callers that pass a raw
// dateTime value directly.
func (e *EventDateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("failed to parse RFC3339 date-time string %q: %w", s, err)
		}
		utc := parsed.UTC()
		e.DateTime = &utc
		e.TimeZone = ""
		return nil
	}

	var obj eventDateTimeObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.DateTime = obj.DateTime
	e.TimeZone = obj.TimeZone
	return nil
}

// EventAttendee is one invitee on a CalendarEvent.
type EventAttendee struct {
	Email          string `json:"email"`
	Optional       bool   `json:"optional,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// ReminderOverride is one entry in EventReminders.Overrides.
type ReminderOverride struct {
	Method  string `json:"method"`
	Minutes int64  `json:"minutes"`
}

// EventReminders controls event notification behavior.
type EventReminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []ReminderOverride `json:"overrides,omitempty"`
}

// CalendarEvent is a Google Calendar event resource (read shape).
type CalendarEvent struct {
	ID          string          `json:"id,omitempty"`
	Status      string          `json:"status,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Start       *EventDateTime  `json:"start,omitempty"`
	End         *EventDateTime  `json:"end,omitempty"`
	Attendees   []EventAttendee `json:"attendees,omitempty"`
	Reminders   *EventReminders `json:"reminders,omitempty"`
	HTMLLink    string          `json:"htmlLink,omitempty"`
	CreatedAt   *time.Time      `json:"created,omitempty"`
	UpdatedAt   *time.Time      `json:"updated,omitempty"`
}

// EventPayload is the write shape accepted by CreateEvent/UpdateEvent.
type EventPayload struct {
	CalendarID  string          `json:"-"`
	Summary     string          `json:"summary,omitempty"`
	Description string          `json:"description,omitempty"`
	Location    string          `json:"location,omitempty"`
	Start       *EventDateTime  `json:"start,omitempty"`
	End         *EventDateTime  `json:"end,omitempty"`
	Attendees   []EventAttendee `json:"attendees,omitempty"`
	Reminders   *EventReminders `json:"reminders,omitempty"`
}

// ListEvents calls calendars/{id}/events.
func (c *Client) ListEvents(ctx context.Context, accessToken string, p ListEventsParams) (*ListEventsResponse, error) {
	calendarID := c.resolveCalendar(p.CalendarID)
	reqURL, err := url.Parse(c.calendarURL(calendarID, "events"))
	if err != nil {
		return nil, errors.NewInternalError("failed to compose calendar endpoint", err)
	}

	q := reqURL.Query()
	if p.TimeMin != nil {
		q.Set("timeMin", p.TimeMin.Format(time.RFC3339))
	}
	if p.TimeMax != nil {
		q.Set("timeMax", p.TimeMax.Format(time.RFC3339))
	}
	if p.MaxResults > 0 {
		q.Set("maxResults", strconv.Itoa(p.MaxResults))
	}
	if p.PageToken != "" {
		q.Set("pageToken", p.PageToken)
	}
	if p.Query != "" {
		q.Set("q", p.Query)
	}
	if p.SingleEvents {
		q.Set("singleEvents", "true")
	}
	if p.OrderByStartTime {
		q.Set("orderBy", "startTime")
	}
	reqURL.RawQuery = q.Encode()

	var out ListEventsResponse
	if err := c.do(ctx, http.MethodGet, reqURL.String(), accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEvent calls calendars/{id}/events/{eventId}.
func (c *Client) GetEvent(ctx context.Context, accessToken, calendarID, eventID string) (*CalendarEvent, error) {
	reqURL := c.calendarURL(c.resolveCalendar(calendarID), "events/"+url.PathEscape(eventID))
	var out CalendarEvent
	if err := c.do(ctx, http.MethodGet, reqURL, accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEvent calls POST calendars/{id}/events. summary and start/end are
// required.
func (c *Client) CreateEvent(ctx context.Context, accessToken string, payload EventPayload) (*CalendarEvent, error) {
	if payload.Summary == "" {
		return nil, errors.NewInvalidRequestError("summary is required to create an event", nil)
	}
	if payload.Start == nil || payload.End == nil {
		return nil, errors.NewInvalidRequestError("start and end dateTimes are required to create an event", nil)
	}

	reqURL := c.calendarURL(c.resolveCalendar(payload.CalendarID), "events")
	var out CalendarEvent
	if err := c.do(ctx, http.MethodPost, reqURL, accessToken, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateEvent calls PATCH calendars/{id}/events/{eventId}.
func (c *Client) UpdateEvent(ctx context.Context, accessToken, eventID string, patch EventPayload) (*CalendarEvent, error) {
	reqURL := c.calendarURL(c.resolveCalendar(patch.CalendarID), "events/"+url.PathEscape(eventID))
	var out CalendarEvent
	if err := c.do(ctx, http.MethodPatch, reqURL, accessToken, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// googleErrorBody is Google's standard error envelope, used here only to
// detect a scope rejection on a 403 response (handle_calendar_error's
// equivalent in original_source/src/mcp/mod.rs checks for an
// "insufficient_scope:" prefixed error string; Google itself signals the
// same condition via error.errors[].reason).
type googleErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

// scopeRejectionDescription reports whether a 403 response body indicates
// the access token lacks a required OAuth scope, as opposed to some other
// permission failure (e.g. the calendar itself being inaccessible).
func scopeRejectionDescription(body []byte) (string, bool) {
	var parsed googleErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}
	for _, e := range parsed.Error.Errors {
		switch e.Reason {
		case "insufficientPermissions", "insufficientScopes", "ACCESS_TOKEN_SCOPE_INSUFFICIENT":
			if e.Message != "" {
				return e.Message, true
			}
			return parsed.Error.Message, true
		}
	}
	return "", false
}

func (c *Client) do(ctx context.Context, method, reqURL, accessToken string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternalError("failed to encode calendar request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return errors.NewInternalError("failed to build calendar request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.NewInternalError("calendar request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewInternalError("failed to read calendar response", err)
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusForbidden {
			if description, ok := scopeRejectionDescription(respBody); ok {
				return errors.NewInsufficientScopeError(description, nil)
			}
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return errors.NewUnauthorizedError(fmt.Sprintf("calendar api returned status %d", resp.StatusCode), nil)
		}
		return errors.NewInvalidRequestError(fmt.Sprintf("calendar api returned status %d: %s", resp.StatusCode, string(respBody)), nil)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.NewInternalError("failed to parse calendar response", err)
		}
	}
	return nil
}
