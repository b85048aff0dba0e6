package coreplaylist

import (
	"time"
)

// Playlist is the top-level authored content container. It is created in
// "draft"; once published, its metadata and its whole section/media subtree
// are locked until it is reverted to draft.
type Playlist struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CategoryID      string    `json:"categoryId"`
	Status          string    `json:"status"` // "draft" | "published"
	SectionsVersion int64     `json:"sectionsVersion"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Section is an ordered sub-grouping within a playlist. Order is 1-based and
// contiguous within the playlist.
type Section struct {
	ID             string    `json:"id"`
	PlaylistID     string    `json:"playlistId"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	SectionType    string    `json:"sectionType"` // "base" | "loop"
	MinSelectMedia int       `json:"minSelectMedia"`
	MaxSelectMedia int       `json:"maxSelectMedia"`
	Order          int       `json:"order"`
	MediasVersion  int64     `json:"mediasVersion"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SectionMedia is the ordered membership edge linking a media item into a
// section. A given mediaId appears at most once per section.
type SectionMedia struct {
	ID              string    `json:"id"`
	SectionID       string    `json:"sectionId"`
	MediaID         string    `json:"mediaId"`
	Order           int       `json:"order"`
	IsRequired      bool      `json:"isRequired"`
	IsOptional      bool      `json:"isOptional"`
	DefaultSelected bool      `json:"defaultSelected"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Media is a library item referenced by SectionMedia rows. The source is a
// tagged variant: stored files carry a storage ref, embeds carry a URL. The
// ordering engine only ever sees the opaque id.
type Media struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SourceKind string    `json:"sourceKind"` // "stored" | "embed"
	StorageRef string    `json:"storageRef,omitempty"`
	EmbedURL   string    `json:"embedUrl,omitempty"`
	DurationMs int       `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	statusDraft     = "draft"
	statusPublished = "published"
)

const (
	sectionTypeBase = "base"
	sectionTypeLoop = "loop"
)

const (
	sourceKindStored = "stored"
	sourceKindEmbed  = "embed"
)
