// Package api wraps the remote time-tracking service HTTP API. It is a
// thin boundary: network and validation failures surface to callers as
// errors, and a 401 maps to ErrUnauthorized so the sync engine can pause
// delivery and raise a logout notification.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized is returned when the remote service rejects the bearer
// token. Detect it with errors.Is.
var ErrUnauthorized = errors.New("api: unauthorized")

// Credentials holds the auth state sourced from external configuration.
type Credentials struct {
	BaseURL        string
	Token          string
	TenantID       string
	OrganizationID string
	EmployeeID     string
}

// Client talks to the remote time-tracking service.
type Client struct {
	http  *resty.Client
	creds Credentials
}

// NewClient builds a client for the given credentials.
func NewClient(creds Credentials) (*Client, error) {
	if creds.BaseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	httpClient := resty.New().
		SetBaseURL(creds.BaseURL).
		SetAuthToken(creds.Token).
		SetHeader("Tenant-Id", creds.TenantID).
		SetHeader("Organization-Id", creds.OrganizationID)
	return &Client{http: httpClient, creds: creds}, nil
}

// SetToken replaces the bearer token after re-authentication.
func (c *Client) SetToken(token string) {
	c.creds.Token = token
	c.http.SetAuthToken(token)
}

// TimeSlotActivity is one entry in the activities array of a time-slot.
type TimeSlotActivity struct {
	Title          string      `json:"title"`
	Duration       int         `json:"duration"`
	Date           string      `json:"date"`
	Time           string      `json:"time"`
	Type           string      `json:"type"`
	Source         string      `json:"source"`
	RecordedAt     string      `json:"recordedAt"`
	EmployeeID     string      `json:"employeeId"`
	OrganizationID string      `json:"organizationId"`
	Metadata       interface{} `json:"metaData,omitempty"`
}

// TimeSlotParams is the body of a time-slot write.
type TimeSlotParams struct {
	TenantID       string             `json:"tenantId"`
	OrganizationID string             `json:"organizationId"`
	EmployeeID     string             `json:"employeeId"`
	Duration       int                `json:"duration"`
	Keyboard       int                `json:"keyboard"`
	Mouse          int                `json:"mouse"`
	Overall        int                `json:"overall"`
	StartedAt      string             `json:"startedAt"`
	RecordedAt     string             `json:"recordedAt"`
	Activities     []TimeSlotActivity `json:"activities"`
}

// TimeSlotResponse carries the remote id a screenshot attaches to.
type TimeSlotResponse struct {
	ID string `json:"id"`
}

// SaveTimeSlot submits one sample interval as a remote time-slot and
// returns the created slot. The write is not idempotent on the remote
// side; callers must not retry a call that has already succeeded.
func (c *Client) SaveTimeSlot(ctx context.Context, params TimeSlotParams) (*TimeSlotResponse, error) {
	var slot TimeSlotResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&slot).
		Post("/timesheet/time-slot")
	if err != nil {
		return nil, fmt.Errorf("api: save time slot: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("api: save time slot: %w", err)
	}
	if slot.ID == "" {
		return nil, fmt.Errorf("api: save time slot: response missing id")
	}
	return &slot, nil
}

// ScreenshotParams is the multipart form metadata of a screenshot upload.
type ScreenshotParams struct {
	TenantID       string
	OrganizationID string
	RecordedAt     time.Time
	TimeSlotID     string
}

// ScreenshotResponse is the remote record of an uploaded screenshot.
type ScreenshotResponse struct {
	ID         string `json:"id"`
	TimeSlotID string `json:"timeSlotId"`
}

// UploadScreenshot uploads the image at filePath tagged with its
// time-slot id.
func (c *Client) UploadScreenshot(ctx context.Context, params ScreenshotParams, filePath string) (*ScreenshotResponse, error) {
	var shot ScreenshotResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("file", filePath).
		SetFormData(map[string]string{
			"tenantId":       params.TenantID,
			"organizationId": params.OrganizationID,
			"recordedAt":     params.RecordedAt.UTC().Format(time.RFC3339),
			"timeSlotId":     params.TimeSlotID,
		}).
		SetResult(&shot).
		Post("/timesheet/screenshot")
	if err != nil {
		return nil, fmt.Errorf("api: upload screenshot: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("api: upload screenshot: %w", err)
	}
	return &shot, nil
}

// TimerStatus is the remote timer state.
type TimerStatus struct {
	Running   bool      `json:"running"`
	Duration  int64     `json:"duration"`
	StartedAt time.Time `json:"startedAt"`
}

// GetTimerStatus fetches the remote timer state for the employee.
func (c *Client) GetTimerStatus(ctx context.Context) (*TimerStatus, error) {
	var status TimerStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("tenantId", c.creds.TenantID).
		SetQueryParam("organizationId", c.creds.OrganizationID).
		SetResult(&status).
		Get("/timesheet/timer/status")
	if err != nil {
		return nil, fmt.Errorf("api: timer status: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("api: timer status: %w", err)
	}
	return &status, nil
}

// EmployeeSettings are server-side tracking preferences for the employee.
type EmployeeSettings struct {
	AllowScreenshotCapture bool `json:"allowScreenshotCapture"`
	TrackKeyboardMouse     bool `json:"allowKeyboardMouseTracking"`
}

// GetEmployeeSettings fetches the employee's tracking preferences.
func (c *Client) GetEmployeeSettings(ctx context.Context) (*EmployeeSettings, error) {
	var settings EmployeeSettings
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&settings).
		Get("/employee/" + c.creds.EmployeeID + "/settings")
	if err != nil {
		return nil, fmt.Errorf("api: employee settings: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("api: employee settings: %w", err)
	}
	return &settings, nil
}

// StartTimerParams is the body of a timer-start replay.
type StartTimerParams struct {
	TenantID       string `json:"tenantId"`
	OrganizationID string `json:"organizationId"`
	StartedAt      string `json:"startedAt"`
	StoppedAt      string `json:"stoppedAt,omitempty"`
	Source         string `json:"source"`
}

// StartTimer replays a timer start that happened while offline.
func (c *Client) StartTimer(ctx context.Context, params StartTimerParams) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		Post("/timesheet/timer/start")
	if err != nil {
		return fmt.Errorf("api: start timer: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("api: start timer: %w", err)
	}
	return nil
}

// checkStatus maps HTTP errors to pipeline errors. 401 is the only status
// with special handling.
func checkStatus(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.IsError() {
		return fmt.Errorf("remote returned %s: %s", resp.Status(), resp.String())
	}
	return nil
}
