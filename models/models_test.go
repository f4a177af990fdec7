package models_test

import (
	"testing"

	"github.com/abearman/mindful-sub000/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroups(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		wantLen int
	}{
		{"empty array", `[]`, false, 0},
		{"group without bookmarks", `[{"id":"g1","groupName":"Work"}]`, false, 1},
		{"full group", `[{"id":"g1","groupName":"Work","bookmarks":[{"id":"b1","name":"Go","url":"https://go.dev","dateAdded":1}]}]`, false, 1},
		{"null", `null`, true, 0},
		{"object", `{"id":"g1"}`, true, 0},
		{"not json", `nope`, true, 0},
		{"group missing id", `[{"groupName":"Work"}]`, true, 0},
		{"bookmark missing id", `[{"id":"g1","groupName":"Work","bookmarks":[{"name":"Go"}]}]`, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := models.ParseGroups([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrInvalidGroups)
				return
			}
			require.NoError(t, err)
			assert.Len(t, groups, tt.wantLen)
			for _, g := range groups {
				assert.NotNil(t, g.Bookmarks)
			}
		})
	}
}

func TestAddNewGroup(t *testing.T) {
	work := models.NewGroup("Work")

	withSentinel := models.EnsureAddNewGroup([]models.BookmarkGroup{work})
	require.Len(t, withSentinel, 2)
	assert.True(t, models.IsAddNewGroup(withSentinel[1]))

	again := models.EnsureAddNewGroup(withSentinel)
	assert.Len(t, again, 2)

	stripped := models.StripAddNewGroup(withSentinel)
	assert.Equal(t, []models.BookmarkGroup{work}, stripped)

	assert.NotNil(t, models.StripAddNewGroup(nil))
	assert.Len(t, models.EnsureAddNewGroup(nil), 1)
}

func TestNewIdsAreUnique(t *testing.T) {
	a := models.NewGroup("a")
	b := models.NewGroup("a")
	assert.NotEqual(t, a.Id, b.Id)

	bm := models.NewBookmark("Go", "https://go.dev", 42)
	require.NotNil(t, bm.DateAdded)
	assert.Equal(t, int64(42), *bm.DateAdded)
}

func TestParseStorageType(t *testing.T) {
	st, err := models.ParseStorageType("remote")
	require.NoError(t, err)
	assert.Equal(t, models.StorageRemote, st)

	st, err = models.ParseStorageType("local")
	require.NoError(t, err)
	assert.Equal(t, models.StorageLocal, st)

	_, err = models.ParseStorageType("Remote")
	assert.ErrorIs(t, err, models.ErrInvalidStorageType)
	_, err = models.ParseStorageType("")
	assert.ErrorIs(t, err, models.ErrInvalidStorageType)
}

func TestParseChangeEvent(t *testing.T) {
	ev, err := models.ParseChangeEvent([]byte(`{"type":"bookmarks_changed","source":"popup","storageType":"local","at":5}`))
	require.NoError(t, err)
	assert.Equal(t, "popup", ev.Source)
	assert.Equal(t, models.StorageLocal, ev.StorageType)
	assert.Equal(t, int64(5), ev.At)

	for _, bad := range []string{
		`{"type":"hello","source":"popup"}`,
		`{"type":"bookmarks_changed"}`,
		`garbage`,
	} {
		_, err := models.ParseChangeEvent([]byte(bad))
		assert.ErrorIs(t, err, models.ErrInvalidEvent, bad)
	}
}

func TestNewChangeEvent(t *testing.T) {
	ev := models.NewChangeEvent("user-1", "tab", models.StorageRemote)
	assert.Equal(t, models.EventBookmarksChanged, ev.Type)
	assert.NotZero(t, ev.At)
	assert.NotEqual(t, models.NewContextId(), models.NewContextId())
}
