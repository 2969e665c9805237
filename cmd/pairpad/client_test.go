package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomURL(t *testing.T) {
	tests := []struct {
		server, room, want string
	}{
		{"http://localhost:5000", "lobby", "ws://localhost:5000/ws/lobby"},
		{"https://pad.example.com/", "team a", "wss://pad.example.com/ws/team%20a"},
		{"ws://127.0.0.1:9000/base", "r1", "ws://127.0.0.1:9000/base/ws/r1"},
	}
	for _, tt := range tests {
		got, err := roomURL(tt.server, tt.room)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := roomURL("ftp://host", "r1")
	assert.Error(t, err)
}

func TestFormatIncoming(t *testing.T) {
	line := formatIncoming([]byte(`{"user":"bob","code":"x = 1"}`))
	assert.Contains(t, line, "bob>")
	assert.Contains(t, line, "x = 1")

	assert.Equal(t, "plain text", formatIncoming([]byte("plain text")))
}

func TestEchoFilterHidesOnlyOwnPayloads(t *testing.T) {
	f := newEchoFilter()
	mine := []byte(`{"user":"alice","code":"x = 1"}`)
	f.Sent(mine)
	f.Sent(mine)

	// Another participant with the same name and a different line.
	assert.False(t, f.Echo([]byte(`{"user":"alice","code":"y = 2"}`)))

	assert.True(t, f.Echo(mine))
	assert.True(t, f.Echo(mine))
	// A third identical payload was not sent by us.
	assert.False(t, f.Echo(mine))
}

func TestEchoFilterIsBounded(t *testing.T) {
	f := newEchoFilter()
	for i := range maxPendingEchoes + 10 {
		f.Sent([]byte(fmt.Sprintf("line-%d", i)))
	}
	assert.LessOrEqual(t, len(f.pending), maxPendingEchoes)
	assert.True(t, f.Echo([]byte(fmt.Sprintf("line-%d", maxPendingEchoes+9))))
}

func TestLanguageForFile(t *testing.T) {
	lang, ok := languageForFile("src/Main.JAVA")
	assert.True(t, ok)
	assert.Equal(t, "java", lang)

	lang, ok = languageForFile("hello.py")
	assert.True(t, ok)
	assert.Equal(t, "python", lang)

	_, ok = languageForFile("notes.txt")
	assert.False(t, ok)
}
