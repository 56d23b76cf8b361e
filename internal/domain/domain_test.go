package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalRoomName(t *testing.T) {
	assert.Equal(t, RoomName("#general"), CanonicalRoomName("general"))
	assert.Equal(t, RoomName("#general"), CanonicalRoomName("#general"))
	assert.Equal(t, RoomName("##x"), CanonicalRoomName("##x"))
	assert.Equal(t, RoomName(""), CanonicalRoomName(""))
}

func TestNewMemberValidatesName(t *testing.T) {
	_, err := NewMember("", "id", time.Now())
	assert.ErrorIs(t, err, ErrMemberNameEmpty)

	_, err = NewMember(MemberName(strings.Repeat("x", MaxMemberNameLen+1)), "id", time.Now())
	assert.ErrorIs(t, err, ErrMemberNameTooLong)

	m, err := NewMember("bob", "id1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, MemberName("bob"), m.Name)
	assert.Empty(t, m.Rooms)
}

func TestMemberCloneIsIndependent(t *testing.T) {
	m, err := NewMember("bob", "id1", time.Now())
	require.NoError(t, err)
	m.Rooms["#b"] = struct{}{}
	m.Rooms["#a"] = struct{}{}

	c := m.Clone()
	delete(m.Rooms, "#a")

	assert.Equal(t, []RoomName{"#a", "#b"}, c.RoomNames())
	assert.Equal(t, []RoomName{"#b"}, m.RoomNames())
}

func TestRoomStateErrorsShareParent(t *testing.T) {
	for _, err := range []error{ErrAlreadyMember, ErrNotMember, ErrUnknownRoom} {
		assert.True(t, errors.Is(err, ErrRoomState), err.Error())
	}
	assert.False(t, errors.Is(ErrDuplicateName, ErrRoomState))
}
