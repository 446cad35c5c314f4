package syncer

import (
	"encoding/json"
	"time"

	"github.com/zulandar/timedock/internal/activity"
	"github.com/zulandar/timedock/internal/api"
	"github.com/zulandar/timedock/internal/models"
)

// timeSlotParams converts a stored sample into the remote time-slot body:
// duration counters plus an activities array holding the keyboard/mouse
// rollup and any recorded foreground-window intervals.
func (e *Engine) timeSlotParams(sample *models.ActivitySample) api.TimeSlotParams {
	duration := int(sample.Duration().Seconds())
	overall := int(sample.OverallDuration().Seconds())
	startedAt := sample.TimeStart.UTC().Format(time.RFC3339)

	activities := []api.TimeSlotActivity{{
		Title:          "Keyboard and Mouse",
		Duration:       overall,
		Date:           sample.TimeStart.UTC().Format("2006-01-02"),
		Time:           sample.TimeStart.UTC().Format("15:04:05"),
		Type:           "APP",
		Source:         "DESKTOP",
		RecordedAt:     startedAt,
		EmployeeID:     sample.EmployeeID,
		OrganizationID: sample.OrganizationID,
		Metadata: map[string]interface{}{
			"kbPressCount":         sample.KbPressCount,
			"kbSequence":           decodeJSON(sample.KbSequence),
			"mouseLeftClickCount":  sample.MouseLeftClickCount,
			"mouseRightClickCount": sample.MouseRightClickCount,
			"mouseMovementsCount":  sample.MouseMovementCount,
			"mouseEvents":          decodeJSON(sample.MouseEvents),
		},
	}}

	for _, win := range decodeWindows(sample.ActiveWindows) {
		activities = append(activities, api.TimeSlotActivity{
			Title:          win.Name,
			Duration:       win.Duration,
			Date:           sample.TimeStart.UTC().Format("2006-01-02"),
			Time:           sample.TimeStart.UTC().Format("15:04:05"),
			Type:           "APP",
			Source:         "DESKTOP",
			RecordedAt:     startedAt,
			EmployeeID:     sample.EmployeeID,
			OrganizationID: sample.OrganizationID,
		})
	}

	return api.TimeSlotParams{
		TenantID:       sample.TenantID,
		OrganizationID: sample.OrganizationID,
		EmployeeID:     sample.EmployeeID,
		Duration:       duration,
		Keyboard:       sample.KbPressCount,
		Mouse:          sample.MouseLeftClickCount + sample.MouseRightClickCount,
		Overall:        overall,
		StartedAt:      startedAt,
		RecordedAt:     startedAt,
		Activities:     activities,
	}
}

// decodeJSON parses a stored JSON column, falling back to an empty array
// on malformed data so one bad row can't wedge the queue.
func decodeJSON(raw string) interface{} {
	if raw == "" {
		return []interface{}{}
	}
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return []interface{}{}
	}
	return v
}

func decodeWindows(raw string) []activity.WindowEvent {
	if raw == "" {
		return nil
	}
	var wins []activity.WindowEvent
	if err := json.Unmarshal([]byte(raw), &wins); err != nil {
		return nil
	}
	return wins
}
