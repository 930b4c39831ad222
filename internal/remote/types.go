package remote

import (
	"context"

	"github.com/nhle/remindme/internal/model"
)

// Service is the subset of the remote API the scheduler and sync
// coordinator depend on.
type Service interface {
	// FetchAll returns every notification the authenticated user owns.
	FetchAll(ctx context.Context) ([]model.Notification, error)

	// Delete removes notifications by remote ID. Privileged requests go
	// through the administrative endpoint.
	Delete(ctx context.Context, ids []int64, privileged bool) error

	// FetchAdminStatus reports whether the authenticated user is an administrator.
	FetchAdminStatus(ctx context.Context) (bool, error)
}

// notificationDTO is the wire shape of a notification.
// FireAt is a second- or millisecond-epoch value.
type notificationDTO struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Payload *string `json:"payload"`
	FireAt  int64   `json:"fireAt"`
}

func (d notificationDTO) toModel() model.Notification {
	n := model.Notification{
		RemoteID: d.ID,
		Title:    d.Title,
		FireAt:   model.FireAtFromEpoch(d.FireAt),
	}
	if d.Payload != nil {
		n.Payload = *d.Payload
	}
	return n
}

func dtoFromModel(n model.Notification) notificationDTO {
	d := notificationDTO{
		ID:     n.RemoteID,
		Title:  n.Title,
		FireAt: n.FireAt.Unix(),
	}
	if n.Payload != "" {
		payload := n.Payload
		d.Payload = &payload
	}
	return d
}

// UploadResult is the service's answer to an upload.
type UploadResult struct {
	ClientID int      `json:"clientId"`
	WebIDs   []int64  `json:"webIds"`
	Statuses []string `json:"statuses"`
	Status   string   `json:"status"`
}

// AllStatuses returns Statuses, falling back to the single Status field.
func (r UploadResult) AllStatuses() []string {
	if len(r.Statuses) > 0 {
		return r.Statuses
	}
	if r.Status != "" {
		return []string{r.Status}
	}
	return nil
}

type adminStatusDTO struct {
	IsAdmin *bool `json:"isAdmin"`
}

type userDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  int    `json:"isAdmin"`
}

type deleteNotificationDTO struct {
	NotificationID int64 `json:"notificationId"`
}

type deleteUserDTO struct {
	Username string `json:"username"`
}
