package domain

import "time"

// Notification es un elemento del inbox.
type Notification struct {
	ID               int64     `json:"id"`
	Content          string    `json:"content"`
	Video            *int64    `json:"video,omitempty"`
	NotificationType string    `json:"notification_type"`
	CreatedAt        time.Time `json:"created_at"`
	ProfilePicture   string    `json:"profile_picture,omitempty"`
	Seen             bool      `json:"seen"`
}

func CountUnseen(items []Notification) int {
	n := 0
	for _, item := range items {
		if !item.Seen {
			n++
		}
	}
	return n
}
