package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectors_WithDefaults(t *testing.T) {
	custom := Selectors{
		ItemInput: "#scan",
		Messages:  Messages{Rejected: []string{"nope"}},
	}.withDefaults()

	def := DefaultSelectors()
	assert.Equal(t, "#scan", custom.ItemInput)
	assert.Equal(t, def.LoginEmail, custom.LoginEmail)
	assert.Equal(t, def.Spinner, custom.Spinner)
	assert.Equal(t, []string{"nope"}, custom.Messages.Rejected)
	assert.Equal(t, def.Messages.Duplicate, custom.Messages.Duplicate)
}

func TestMatcher_AddOutcome(t *testing.T) {
	m, err := compileMessages(DefaultSelectors().Messages)
	require.NoError(t, err)

	tests := []struct {
		name     string
		texts    []string
		wantKind Kind
		wantText string
		wantOK   bool
	}{
		{
			name:   "no banner",
			texts:  nil,
			wantOK: false,
		},
		{
			name:   "success banner",
			texts:  []string{"A1234 added to reservation"},
			wantOK: false,
		},
		{
			name:     "already on reservation",
			texts:    []string{"A1234 is already on this reservation"},
			wantKind: KindDuplicate,
			wantText: "A1234 is already on this reservation",
			wantOK:   true,
		},
		{
			name:     "duplicate beats rejected",
			texts:    []string{"Cannot be added: item has already been added"},
			wantKind: KindDuplicate,
			wantText: "Cannot be added: item has already been added",
			wantOK:   true,
		},
		{
			name:     "unknown barcode",
			texts:    []string{"Saved", "Asset ZZZ not found"},
			wantKind: KindRejected,
			wantText: "Asset ZZZ not found",
			wantOK:   true,
		},
		{
			name:     "case insensitive",
			texts:    []string{"UNKNOWN BARCODE"},
			wantKind: KindRejected,
			wantText: "UNKNOWN BARCODE",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, text, ok := m.addOutcome(tt.texts)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantKind, kind)
				assert.Equal(t, tt.wantText, text)
			}
		})
	}
}

func TestMatcher_OpenAndLogin(t *testing.T) {
	m, err := compileMessages(DefaultSelectors().Messages)
	require.NoError(t, err)

	text, ok := m.openOutcome([]string{"The reservation you requested does not exist"})
	assert.True(t, ok)
	assert.Contains(t, text, "does not exist")

	_, ok = m.openOutcome([]string{"Welcome back"})
	assert.False(t, ok)

	text, ok = m.loginOutcome([]string{"Invalid email or password."})
	assert.True(t, ok)
	assert.Equal(t, "Invalid email or password.", text)

	_, ok = m.loginOutcome([]string{"Signed in successfully"})
	assert.False(t, ok)
}
