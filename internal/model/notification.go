package model

import (
	"fmt"
	"time"
)

// Kind classifies a notification. It selects the icon and color in the
// notification center and which toast variant fires when it is added.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Kinds lists every valid kind in display order.
var Kinds = []Kind{KindInfo, KindSuccess, KindWarning, KindError}

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown notification kind %q", s)
}

// Notification is a user-facing message with read/unread state.
type Notification struct {
	// ID is the unique identifier assigned at creation time.
	ID string `json:"id"`

	// Title is the short headline shown in the list.
	Title string `json:"title"`

	// Message is the body text; it is also the toast body.
	Message string `json:"message"`

	// Kind determines the icon, color and toast variant.
	Kind Kind `json:"type"`

	// Timestamp is when the notification was created. It never changes.
	Timestamp time.Time `json:"timestamp"`

	// Read is false until the user marks the notification as read.
	Read bool `json:"read"`
}

// CountUnread returns the number of notifications with Read == false.
func CountUnread(ns []Notification) int {
	n := 0
	for _, x := range ns {
		if !x.Read {
			n++
		}
	}
	return n
}
