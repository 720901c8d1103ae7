package client

import (
	"testing"

	"notely/internal/database/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestParseTags(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"work, idea", []string{"work", "idea"}},
		{" a ,, b , ,a", []string{"a", "b", "a"}},
		{",,,", []string{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseTags(tt.in)); diff != "" {
			t.Errorf("ParseTags(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestDraftApplyOnlyGivenFields(t *testing.T) {
	note := models.Note{Title: "Groceries", Content: ptr("milk"), Tags: []string{"home"}}
	d := DraftFrom(note)

	got := d.Apply(Edit{Content: ptr("milk, eggs")})
	assert.Equal(t, Draft{Title: "Groceries", Content: "milk, eggs", Tags: []string{"home"}}, got)

	got = got.Apply(Edit{Tags: ptr("")})
	assert.Equal(t, []string{}, got.Tags)
	assert.Equal(t, []string{"home"}, d.Tags, "original draft untouched")
}

func TestDraftFromMissingContent(t *testing.T) {
	d := DraftFrom(models.Note{Title: "t"})
	assert.Empty(t, d.Content)
	assert.ErrorIs(t, d.Validate(), ErrEmptyDraft)
	assert.NoError(t, d.Apply(Edit{Content: ptr("back")}).Validate())
}

func TestDraftValidate(t *testing.T) {
	assert.ErrorIs(t, Draft{Content: "c"}.Validate(), ErrEmptyDraft)
	assert.ErrorIs(t, Draft{Title: "t"}.Validate(), ErrEmptyDraft)
	assert.NoError(t, Draft{Title: "t", Content: "c"}.Validate())
	assert.NoError(t, Draft{Title: "  ", Content: "\n"}.Validate(), "blank but non-empty is kept as typed")
}

func TestDraftInputNeverSendsNullTags(t *testing.T) {
	in := Draft{Title: "t", Content: "c"}.Input()
	require.NotNil(t, in.Tags)
	assert.Equal(t, []string{}, *in.Tags)
}
