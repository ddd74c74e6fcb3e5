package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContentLengthCountsUTF16CodeUnits(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "ascii", content: "hello", want: 5},
		{name: "empty", content: "", want: 0},
		{name: "accented", content: "café", want: 4},
		{name: "surrogate pair counts as two", content: "hi 😀", want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ContentLength(tt.content))
		})
	}
}

func TestValidateContent(t *testing.T) {
	require.NoError(t, ValidateContent("hello", 0))
	require.NoError(t, ValidateContent(strings.Repeat("a", MaxMessageLength), 0))

	require.Error(t, ValidateContent("", 0))
	require.Error(t, ValidateContent("   \t\n", 0))
	require.Error(t, ValidateContent(strings.Repeat("a", MaxMessageLength+1), 0))

	// Custom limit overrides the default.
	require.Error(t, ValidateContent("toolong", 3))
	require.NoError(t, ValidateContent("ok", 3))

	// Emoji count double toward the limit.
	require.Error(t, ValidateContent(strings.Repeat("😀", 251), 0))
	require.NoError(t, ValidateContent(strings.Repeat("😀", 250), 0))
}

func TestMessageValidate(t *testing.T) {
	valid := Message{
		ID:        "m1",
		Content:   "hi",
		Author:    User{ID: "u1", DisplayName: "Alice"},
		CreatedAt: time.Now(),
	}
	require.NoError(t, valid.Validate())

	missingID := valid
	missingID.ID = ""
	require.Error(t, missingID.Validate())

	missingAuthor := valid
	missingAuthor.Author = User{}
	require.Error(t, missingAuthor.Validate())

	missingTime := valid
	missingTime.CreatedAt = time.Time{}
	require.Error(t, missingTime.Validate())
}

func TestGroupValidate(t *testing.T) {
	valid := Group{ID: "g1", Name: "CS Study Group"}
	require.NoError(t, valid.Validate())

	require.Error(t, (&Group{Name: "no id"}).Validate())
	require.Error(t, (&Group{ID: "no-name"}).Validate())
}
