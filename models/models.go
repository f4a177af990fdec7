package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
)

// AddNewGroupName is the reserved name of the placeholder group the UI uses
// to offer "add a new bookmark". It is never persisted.
const AddNewGroupName = "+ Add a group"

type Bookmark struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Url        string `json:"url"`
	FaviconUrl string `json:"faviconUrl,omitempty"`
	DateAdded  *int64 `json:"dateAdded,omitempty"`
}

type BookmarkGroup struct {
	Id        string     `json:"id"`
	GroupName string     `json:"groupName"`
	Bookmarks []Bookmark `json:"bookmarks"`
}

type StorageType string

const (
	StorageLocal  StorageType = "local"
	StorageRemote StorageType = "remote"
)

var ErrInvalidStorageType = errors.New("invalid storage type")

func ParseStorageType(s string) (StorageType, error) {
	switch StorageType(s) {
	case StorageLocal, StorageRemote:
		return StorageType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStorageType, s)
}

func (t StorageType) String() string {
	return string(t)
}

func newId() string {
	id, err := uuid.NewV4()
	if err != nil {
		// crypto/rand failure; nothing sensible left to do
		panic(err)
	}
	return id.String()
}

func NewGroup(name string) BookmarkGroup {
	return BookmarkGroup{Id: newId(), GroupName: name, Bookmarks: []Bookmark{}}
}

func NewBookmark(name, url string, dateAdded int64) Bookmark {
	return Bookmark{Id: newId(), Name: name, Url: url, DateAdded: &dateAdded}
}

func IsAddNewGroup(g BookmarkGroup) bool {
	return g.GroupName == AddNewGroupName
}

// StripAddNewGroup returns groups without the placeholder group.
func StripAddNewGroup(groups []BookmarkGroup) []BookmarkGroup {
	out := make([]BookmarkGroup, 0, len(groups))
	for _, g := range groups {
		if IsAddNewGroup(g) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// EnsureAddNewGroup appends the placeholder group when it is missing.
func EnsureAddNewGroup(groups []BookmarkGroup) []BookmarkGroup {
	for _, g := range groups {
		if IsAddNewGroup(g) {
			return groups
		}
	}
	out := make([]BookmarkGroup, 0, len(groups)+1)
	out = append(out, groups...)
	return append(out, NewGroup(AddNewGroupName))
}

var ErrInvalidGroups = errors.New("invalid bookmark groups")

// ParseGroups decodes a JSON array of bookmark groups. A JSON null or any
// non-array value is rejected, as is a group or bookmark without an id.
func ParseGroups(data []byte) ([]BookmarkGroup, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGroups, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected array", ErrInvalidGroups)
	}

	groups := make([]BookmarkGroup, 0, len(raw))
	for i, r := range raw {
		var g BookmarkGroup
		if err := json.Unmarshal(r, &g); err != nil {
			return nil, fmt.Errorf("%w: group %d: %v", ErrInvalidGroups, i, err)
		}
		if g.Id == "" {
			return nil, fmt.Errorf("%w: group %d has no id", ErrInvalidGroups, i)
		}
		if g.Bookmarks == nil {
			g.Bookmarks = []Bookmark{}
		}
		for j, b := range g.Bookmarks {
			if b.Id == "" {
				return nil, fmt.Errorf("%w: group %d bookmark %d has no id", ErrInvalidGroups, i, j)
			}
		}
		groups = append(groups, g)
	}
	return groups, nil
}
