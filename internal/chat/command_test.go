package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

func TestIsCommand(t *testing.T) {
	assert.True(t, chat.IsCommand("/join lobby"))
	assert.True(t, chat.IsCommand("/quit"))
	assert.False(t, chat.IsCommand("hello there"))
	assert.False(t, chat.IsCommand(""))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    chat.Command
		wantErr error
	}{
		{
			name:    "join with room",
			content: "/join lobby",
			want:    chat.Command{Verb: chat.VerbJoin, Arg: "lobby"},
		},
		{
			name:    "join missing room",
			content: "/join",
			wantErr: chat.ErrUsage,
		},
		{
			name:    "leave with room",
			content: "/leave lobby",
			want:    chat.Command{Verb: chat.VerbLeave, Arg: "lobby"},
		},
		{
			name:    "leave missing room",
			content: "/leave",
			wantErr: chat.ErrUsage,
		},
		{
			name:    "list",
			content: "/list",
			want:    chat.Command{Verb: chat.VerbList},
		},
		{
			name:    "users with room",
			content: "/users lobby",
			want:    chat.Command{Verb: chat.VerbUsers, Arg: "lobby"},
		},
		{
			name:    "users missing room",
			content: "/users",
			wantErr: chat.ErrUsage,
		},
		{
			name:    "quit",
			content: "/quit",
			want:    chat.Command{Verb: chat.VerbQuit},
		},
		{
			name:    "unknown verb",
			content: "/dance",
			wantErr: chat.ErrUnknownCommand,
		},
		{
			name:    "extra whitespace tolerated",
			content: "  /join   lobby  ",
			want:    chat.Command{Verb: chat.VerbJoin, Arg: "lobby"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := chat.ParseCommand(tt.content)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestParseCommandUsageMentionsSyntax(t *testing.T) {
	_, err := chat.ParseCommand("/join")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/join <room>")
}
