package models

import "time"

// ProgressItem is one bar of a widget. Percentage is stored alongside
// current/goal because a direct percentage edit leaves them stale.
type ProgressItem struct {
	ID         string  `json:"id" firestore:"id"`
	Label      string  `json:"label" firestore:"label"`
	Current    float64 `json:"current" firestore:"current"`
	Goal       float64 `json:"goal" firestore:"goal"`
	Percentage float64 `json:"percentage" firestore:"percentage"`
	Color      string  `json:"color" firestore:"color"`
	Image      *string `json:"image" firestore:"image"` // data URL, nil when absent
}

type Widget struct {
	ID         string         `json:"id,omitempty" firestore:"-"`
	Name       string         `json:"name" firestore:"name"`
	Items      []ProgressItem `json:"items" firestore:"items"`
	OwnerID    string         `json:"ownerId" firestore:"ownerId"`
	CreatedAt  time.Time      `json:"createdAt" firestore:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" firestore:"updatedAt"`
	EmbedViews int64          `json:"embedViews" firestore:"embedViews"`
}

// Widget DTOs
type CreateWidgetRequest struct {
	Name  string         `json:"name" validate:"required"`
	Items []ProgressItem `json:"items"`
}

// WidgetPatch holds the fields an owner may change; nil means unchanged.
type WidgetPatch struct {
	Name  *string         `json:"name"`
	Items *[]ProgressItem `json:"items"`
}

type WidgetStats struct {
	Widgets    int   `json:"widgets"`
	TotalViews int64 `json:"totalViews"`
}

// EmbedItem is the public, rendering-ready projection of a ProgressItem.
type EmbedItem struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color"`
	Image      *string `json:"image"`
}

type EmbedView struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Items []EmbedItem `json:"items"`
}
