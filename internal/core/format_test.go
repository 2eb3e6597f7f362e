package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2023, 12, 31, 23, 59, 1, 0, time.UTC)
	names := NameResolverFunc(func(id string) string {
		return map[string]string{"u1": "Alice"}[id]
	})

	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "direct message",
			msg:  NewMessage("u1", "u2", "hello", MessageDirect, ts),
			want: "[2023-12-31 23:59:01] Alice: hello",
		},
		{
			name: "channel message",
			msg:  NewMessage("u1", "g1", "gg", MessageChannel, ts),
			want: "[2023-12-31 23:59:01] Alice: gg",
		},
		{
			name: "system notice",
			msg:  NewMessage(SystemSender, "general", "Alice joined the server", MessageJoin, ts),
			want: "[2023-12-31 23:59:01] Alice joined the server",
		},
		{
			name: "user-authored friend request keeps the name",
			msg:  NewMessage("u1", "u2", "wants to be friends", MessageFriendRequest, ts),
			want: "[2023-12-31 23:59:01] Alice: wants to be friends",
		},
		{
			name: "system sender on channel type",
			msg:  NewMessage(SystemSender, "general", "maintenance at noon", MessageChannel, ts),
			want: "[2023-12-31 23:59:01] maintenance at noon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Format(tt.msg, names))
		})
	}
}

func TestFormatResolvesNameOnce(t *testing.T) {
	calls := 0
	names := NameResolverFunc(func(string) string {
		calls++
		return "Alice"
	})

	Format(NewMessage("u1", "u2", "hi", MessageDirect, time.Now()), names)
	require.Equal(t, 1, calls)

	Format(NewMessage(SystemSender, "general", "notice", MessagePresence, time.Now()), names)
	require.Equal(t, 1, calls, "system notices carry no name segment")
}

func TestWithTimestampCopies(t *testing.T) {
	orig := NewMessage("u1", "u2", "hi", MessageDirect, time.Unix(0, 0))
	stamped := orig.WithTimestamp(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	require.Equal(t, "2020-01-01 00:00:00", stamped.FormattedTimestamp())
	require.Equal(t, time.Unix(0, 0), orig.CreatedAt)
	require.Equal(t, orig.ID, stamped.ID)
}
