package models

import (
	"fmt"
	"time"
)

// ItemType is the kind of a saved item.
type ItemType string

const (
	ItemLink     ItemType = "link"
	ItemNote     ItemType = "note"
	ItemImage    ItemType = "image"
	ItemDocument ItemType = "document"
	ItemFile     ItemType = "file"
	ItemVideo    ItemType = "video"
)

var itemTypes = []ItemType{ItemLink, ItemNote, ItemImage, ItemDocument, ItemFile, ItemVideo}

// ItemTypes returns every valid item type.
func ItemTypes() []ItemType {
	return append([]ItemType(nil), itemTypes...)
}

// ParseItemType validates s as an item type.
func ParseItemType(s string) (ItemType, error) {
	for _, t := range itemTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

func (t ItemType) String() string { return string(t) }

// Item is a saved piece of content. Tags is never nil when read back;
// Embedding is nil until one is generated.
type Item struct {
	ID           string    `json:"id"`
	Type         ItemType  `json:"type"`
	Title        *string   `json:"title"`
	Content      *string   `json:"content"`
	Summary      *string   `json:"summary"`
	Tags         []string  `json:"tags"`
	CategoryID   *string   `json:"category_id"`
	PreviewImage *string   `json:"preview_image"`
	UserNotes    *string   `json:"user_notes"`
	UserID       string    `json:"user_id"`
	Embedding    []float64 `json:"embedding"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Category groups items of one user.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagIcon maps a tag to a display icon, unique per user and tag.
type TagIcon struct {
	ID        string    `json:"id"`
	Tag       string    `json:"tag"`
	Icon      string    `json:"icon"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Str returns a pointer to s, for optional columns.
func Str(s string) *string { return &s }

// Deref returns *p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
