package core

import (
	"testing"

	"github.com/dkeye/lobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandKinds(t *testing.T) {
	cases := map[string]CommandKind{
		"/CONNECT":        CmdConnect,
		"/connect":        CmdConnect,
		"/Join #general":  CmdJoin,
		"/part general":   CmdPart,
		"/QUIT bye all":   CmdQuit,
		"/NICK bob":       CmdUnknown,
		"/   ":            CmdUnknown,
		"/join\t#a  #b  ": CmdJoin,
	}
	for msg, want := range cases {
		cmd, err := ParseCommand(msg)
		require.NoError(t, err, msg)
		assert.Equal(t, want, cmd.Kind, msg)
	}
}

func TestParseCommandEmpty(t *testing.T) {
	_, err := ParseCommand("/")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestParseCommandNotACommand(t *testing.T) {
	_, err := ParseCommand("hello")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.False(t, IsCommand("hello /JOIN"))
	assert.True(t, IsCommand("/x"))
}

func TestUnknownTokenIsUppercased(t *testing.T) {
	cmd, err := ParseCommand("/nick bob")
	require.NoError(t, err)
	assert.Equal(t, "/NICK", cmd.Token)
	assert.Equal(t, []string{"bob"}, cmd.Args)
}

func TestRoomArgTakesFirstAndCanonicalizes(t *testing.T) {
	cmd, err := ParseCommand("/JOIN general #other")
	require.NoError(t, err)
	room, err := cmd.RoomArg()
	require.NoError(t, err)
	assert.Equal(t, domain.RoomName("#general"), room)

	cmd, err = ParseCommand("/PART")
	require.NoError(t, err)
	_, err = cmd.RoomArg()
	assert.ErrorIs(t, err, domain.ErrEmptyRoomArg)
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "JOIN", CmdJoin.String())
	assert.Equal(t, "UNKNOWN", CmdUnknown.String())
}
