package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/pkg/faults"
	"parley/pkg/models"
)

func TestUsername(t *testing.T) {
	assert.NoError(t, Username("alice"))
	assert.NoError(t, Username("a.b-c_99"))
	assert.Error(t, Username(""))
	assert.Error(t, Username("Alice"))
	assert.Error(t, Username("has space"))
	assert.Error(t, Username(strings.Repeat("a", MaxUsernameLen+1)))
}

func TestEmail(t *testing.T) {
	assert.NoError(t, Email(""))
	assert.NoError(t, Email("alice@example.com"))
	assert.Error(t, Email("not-an-address"))
}

func TestMessageInput(t *testing.T) {
	assert.NoError(t, MessageInput("hi", models.KindText, nil))
	assert.NoError(t, MessageInput("", models.KindImage, &models.FileMeta{URL: "https://x/y.png"}))

	err := MessageInput("  ", models.KindText, nil)
	require.ErrorIs(t, err, faults.ErrInvalid)

	require.ErrorIs(t, MessageInput("x", "VOICE", nil), faults.ErrInvalid)
	require.ErrorIs(t, MessageInput("x", models.KindFile, nil), faults.ErrInvalid)
	require.ErrorIs(t, MessageInput("x", models.KindFile, &models.FileMeta{}), faults.ErrInvalid)
	require.ErrorIs(t, MessageInput(strings.Repeat("a", MaxContentLen+1), models.KindText, nil), faults.ErrInvalid)
}

func TestMessageInputAggregatesErrors(t *testing.T) {
	err := MessageInput("", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind is required")
	assert.NotContains(t, err.Error(), "content is required")
}

func TestRoomName(t *testing.T) {
	assert.NoError(t, RoomName("ops"))
	assert.Error(t, RoomName("   "))
	assert.Error(t, RoomName(strings.Repeat("a", MaxNameLen+1)))
}

func TestPage(t *testing.T) {
	assert.NoError(t, Page(0, 1))
	assert.NoError(t, Page(10, 200))
	assert.Error(t, Page(-1, 10))
	assert.Error(t, Page(0, 0))
	assert.Error(t, Page(0, 201))
}
