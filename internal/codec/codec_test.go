package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []Fields{
		{},
		{"who": "bob", "message": "hi"},
		{"who": "ünïcødé", "message": "/JOIN #général", "room": "#général"},
		{"message": "quote \" backslash \\ newline \n", "": "empty key"},
	}
	for _, in := range cases {
		b, err := Encode(in)
		require.NoError(t, err)
		out, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	cases := []Fields{
		{"who": "bob\xff", "message": "hi"},
		{"who": "bob", "message": "a\xc3"},
		{"\xfe": "value"},
	}
	for _, in := range cases {
		b, err := Encode(in)
		assert.ErrorIs(t, err, ErrEncode)
		assert.Nil(t, b)
	}
}

func TestEncodeNilIsEmptyObject(t *testing.T) {
	b, err := Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		``,
		`not json`,
		`null`,
		`[]`,
		`{"who": 1}`,
		`{"who": "bob"`,
	} {
		_, err := Decode([]byte(raw))
		assert.ErrorIs(t, err, ErrDecode, raw)
	}
}

func TestGetRequiresNonEmpty(t *testing.T) {
	f := Fields{"who": "bob", "room": ""}
	v, ok := f.Get("who")
	assert.True(t, ok)
	assert.Equal(t, "bob", v)

	_, ok = f.Get("room")
	assert.False(t, ok)
	_, ok = f.Get("message")
	assert.False(t, ok)
}
