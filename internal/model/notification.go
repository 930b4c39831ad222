package model

import (
	"fmt"
	"strings"
	"time"
)

// secondsEpochLimit separates second-epoch from millisecond-epoch input.
// 1e11 seconds is roughly the year 5138, while 1e11 milliseconds is 1973.
const secondsEpochLimit = 100_000_000_000

// Notification is a reminder that fires at a wall-clock moment. It may
// exist only locally, only remotely, or in both places once synced.
type Notification struct {
	// LocalID is assigned by the local store on insert. Empty until persisted.
	LocalID string `json:"local_id" db:"id"`

	// RemoteID is assigned by the remote service when it accepts an upload.
	// Zero until then.
	RemoteID int64 `json:"remote_id" db:"remote_id"`

	// Title is the short, non-empty reminder text.
	Title string `json:"title" db:"title"`

	// Payload is optional free-form detail shown with the reminder.
	Payload string `json:"payload" db:"payload"`

	// FireAt is when the reminder becomes due, at millisecond precision.
	FireAt time.Time `json:"fire_at" db:"-"`
}

// IsPersisted reports whether the local store has assigned an ID.
func (n Notification) IsPersisted() bool {
	return n.LocalID != ""
}

// IsRemote reports whether the remote service knows this notification.
func (n Notification) IsRemote() bool {
	return n.RemoteID != 0
}

// FireAtMillis returns FireAt as a millisecond epoch.
func (n Notification) FireAtMillis() int64 {
	return n.FireAt.UnixMilli()
}

// Validate checks the fields required before a notification can be stored.
func (n Notification) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("notification title must not be empty")
	}
	if n.FireAt.IsZero() {
		return fmt.Errorf("notification fire time must be set")
	}
	return nil
}

// String renders a compact single-line description used in logs and the CLI.
func (n Notification) String() string {
	return fmt.Sprintf(
		"%s [local=%s remote=%d] at %s",
		n.Title, n.LocalID, n.RemoteID,
		n.FireAt.Local().Format("2006-01-02 15:04:05"),
	)
}

// NormalizeEpochMillis converts a second- or millisecond-epoch value to
// milliseconds.
func NormalizeEpochMillis(v int64) int64 {
	if v > -secondsEpochLimit && v < secondsEpochLimit {
		return v * 1000
	}
	return v
}

// FireAtFromEpoch converts a second- or millisecond-epoch value to a time
// truncated to millisecond precision.
func FireAtFromEpoch(v int64) time.Time {
	return time.UnixMilli(NormalizeEpochMillis(v))
}

// FireAtIn returns the fire time delay from now, truncated to milliseconds.
func FireAtIn(now time.Time, delay time.Duration) time.Time {
	return time.UnixMilli(now.Add(delay).UnixMilli())
}

// Draft is a notification as entered by the user, before it has a fire
// time or any IDs.
type Draft struct {
	Title   string
	Payload string

	// Delay is the time from now until the notification fires.
	Delay time.Duration

	// Upload sends the notification to the remote service before it is
	// stored locally.
	Upload bool
}

// Build returns the notification the draft describes, firing Delay after
// now. Uploaded notifications travel as second epochs, so their fire time
// is truncated to whole seconds to match what the service reports back.
func (d Draft) Build(now time.Time) (Notification, error) {
	if d.Delay < 0 {
		return Notification{}, fmt.Errorf("notification delay must not be negative, got %s", d.Delay)
	}

	n := Notification{
		Title:   strings.TrimSpace(d.Title),
		Payload: d.Payload,
		FireAt:  FireAtIn(now, d.Delay),
	}
	if d.Upload {
		n.FireAt = n.FireAt.Truncate(time.Second)
	}
	return n, n.Validate()
}
