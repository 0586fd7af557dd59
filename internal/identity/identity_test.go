package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMatchesDisplayNameCaseInsensitively(t *testing.T) {
	dir := Directory{{ID: "1", Login: "jdoe", DisplayName: "Acme Corp Lead"}}

	id, ok := dir.Resolve("acme")
	require.True(t, ok)
	assert.Equal(t, "1", id)

	_, ok = dir.Resolve("zzz")
	assert.False(t, ok)
}

func TestResolveMatchesLoginAndFirstEntryWins(t *testing.T) {
	dir := Directory{
		{ID: "7", Login: "asha.k", DisplayName: "A. Kumar"},
		{ID: "8", Login: "asha", DisplayName: "Asha Rao"},
	}
	id, ok := dir.Resolve("ASHA")
	require.True(t, ok)
	assert.Equal(t, "7", id, "directory order breaks ties")
}

func TestParseDirectoryAcceptsNumericIDs(t *testing.T) {
	dir, err := ParseDirectory([]byte(`[{"ID":12,"user_login":"ravi","display_name":"Ravi S","user_email":"r@x"},{"ID":"13","user_login":"m","display_name":"Meera"}]`))
	require.NoError(t, err)
	require.Len(t, dir, 2)
	assert.Equal(t, UserID("12"), dir[0].ID)
	assert.Equal(t, UserID("13"), dir[1].ID)

	empty, err := ParseDirectory([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseDirectory([]byte(`{"ID":1}`))
	require.Error(t, err)
}

func TestBuildLookupSkipsBlanksAndRecordsMissing(t *testing.T) {
	dir := Directory{
		{ID: "1", Login: "asha", DisplayName: "Asha Rao"},
		{ID: "2", Login: "ravi", DisplayName: "Ravi Shah"},
	}
	lookup := BuildLookup(dir, []string{"Ravi", "", "  ", "Nobody", "Asha", "Ravi"})

	ids, missing := lookup.IDs([]string{"Asha", "Nobody", "Ravi"})
	assert.Equal(t, []string{"1", "2"}, ids)
	assert.Equal(t, []string{"Nobody"}, missing)
	assert.Equal(t, []string{"Nobody"}, lookup.Missing())

	_, ok := lookup.ID("")
	assert.False(t, ok, "blank names are never resolved")
}

func TestExpertWidget(t *testing.T) {
	assert.Equal(t, `[red_experts_widget user_ids="3,9"]`, ExpertWidget([]string{"3", "9"}))
	assert.Equal(t, `[red_experts_widget user_ids=""]`, ExpertWidget(nil))
}
