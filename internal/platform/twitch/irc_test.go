package twitch

import "testing"

func TestParseLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want message
		ok   bool
	}{
		{
			name: "privmsg",
			line: ":someuser!someuser@someuser.tmi.twitch.tv PRIVMSG #somechan :hello world",
			want: message{nick: "someuser", command: "PRIVMSG", channel: "somechan", text: "hello world"},
			ok:   true,
		},
		{
			name: "privmsg with tags",
			line: "@badge-info=;color=#FF0000;display-name=SomeUser :someuser!u@h PRIVMSG #somechan :hi there",
			want: message{nick: "someuser", command: "PRIVMSG", channel: "somechan", text: "hi there"},
			ok:   true,
		},
		{
			name: "server ping",
			line: "PING :tmi.twitch.tv",
			want: message{command: "PING", text: "tmi.twitch.tv"},
			ok:   true,
		},
		{
			name: "text containing colon",
			line: ":u!u@h PRIVMSG #c :look at this :) smiley",
			want: message{nick: "u", command: "PRIVMSG", channel: "c", text: "look at this :) smiley"},
			ok:   true,
		},
		{
			name: "numeric welcome",
			line: ":tmi.twitch.tv 001 somebot :Welcome, GLHF!",
			want: message{nick: "tmi.twitch.tv", command: "001", text: "Welcome, GLHF!"},
			ok:   true,
		},
		{
			name: "join notification",
			line: ":somebot!somebot@somebot.tmi.twitch.tv JOIN #somechan",
			want: message{nick: "somebot", command: "JOIN", channel: "somechan"},
			ok:   true,
		},
		{
			name: "empty after prefix",
			line: ":prefixonly",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}
