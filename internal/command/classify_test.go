package command

import (
	"slices"
	"testing"
)

func TestClassifier_KnownCommands(t *testing.T) {
	t.Parallel()

	c := NewClassifier("!")

	tests := []struct {
		name     string
		line     string
		wantCmd  Command
		wantArgs []string
	}{
		{"prefixed talk", "!talk", CmdTalk, nil},
		{"prefixed talk with seed", "!talk the cat", CmdTalk, []string{"the", "cat"}},
		{"case insensitive", "!TALK", CmdTalk, nil},
		{"mixed case", "!Join_Voice 12345", CmdJoinVoice, []string{"12345"}},
		{"vol with arg", "!vol 50", CmdVol, []string{"50"}},
		{"play", "!play 3", CmdPlay, []string{"3"}},
		{"yt", "!yt https://youtu.be/x", CmdYT, []string{"https://youtu.be/x"}},
		{"rank default", "!rank", CmdRank, nil},
		{"rank with id", "!rank player-2424", CmdRank, []string{"player-2424"}},
		{"help scoped", "!help talk", CmdHelp, []string{"talk"}},
		{"np alias", "!np", CmdNowPlaying, nil},
		{"pl alias", "!pl", CmdPlaylist, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			task := c.Classify(tt.line)
			if task == nil {
				t.Fatalf("Classify(%q) = nil", tt.line)
			}
			if task.Command != tt.wantCmd {
				t.Errorf("Classify(%q).Command = %q, want %q", tt.line, task.Command, tt.wantCmd)
			}
			if !slices.Equal(task.Args, tt.wantArgs) {
				t.Errorf("Classify(%q).Args = %v, want %v", tt.line, task.Args, tt.wantArgs)
			}
		})
	}
}

func TestClassifier_RecordFallback(t *testing.T) {
	t.Parallel()

	c := NewClassifier("!")

	tests := []struct {
		name string
		line string
	}{
		{"plain chat", "what a lovely evening"},
		{"prefixed unknown command", "!frobnicate all the things"},
		{"single unknown word", "hello"},
		{"unprefixed command name is plain chat", "talk about the weather"},
		{"explicit record keeps full line", "!record everything I say"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			task := c.Classify(tt.line)
			if task == nil {
				t.Fatalf("Classify(%q) = nil", tt.line)
			}
			if task.Command != CmdRecord {
				t.Fatalf("Classify(%q).Command = %q, want record", tt.line, task.Command)
			}
			if len(task.Args) != 1 || task.Args[0] != tt.line {
				t.Errorf("Classify(%q).Args = %v, want the full original line", tt.line, task.Args)
			}
		})
	}
}

func TestClassifier_NilResults(t *testing.T) {
	t.Parallel()

	c := NewClassifier("!")

	for _, line := range []string{"", "   ", "\t\n", "!", "!   "} {
		if task := c.Classify(line); task != nil {
			t.Errorf("Classify(%q) = %v, want nil", line, task)
		}
	}
}

func TestClassifier_CustomPrefix(t *testing.T) {
	t.Parallel()

	c := NewClassifier("?")

	task := c.Classify("?talk")
	if task == nil || task.Command != CmdTalk {
		t.Fatalf("expected ?talk to classify as talk, got %v", task)
	}

	// With a custom prefix, "!talk hello" is just chat.
	task = c.Classify("!talk hello")
	if task == nil || task.Command != CmdRecord {
		t.Fatalf("expected !talk to fall back to record under ? prefix, got %v", task)
	}
}

func TestTask_Valid(t *testing.T) {
	t.Parallel()

	task := NewTask(CmdTalk, nil)
	if task.Valid() {
		t.Error("task without routing context must not be dispatchable")
	}

	task.Attach(SourceDiscord, "room-1", "chan-1", "user-1", nil)
	if !task.Valid() {
		t.Error("fully attached task must be dispatchable")
	}

	sys := NewSystemTask(CmdServerConnect, "room-1")
	if !sys.Valid() {
		t.Error("system task must be dispatchable")
	}
	if sys.Source != SourceSystem {
		t.Errorf("system task source = %q", sys.Source)
	}
}

func TestLookup_AliasesResolve(t *testing.T) {
	t.Parallel()

	if c, ok := Lookup("np"); !ok || c != CmdNowPlaying {
		t.Errorf("Lookup(np) = %q, %v", c, ok)
	}
	if c, ok := Lookup("pl"); !ok || c != CmdPlaylist {
		t.Errorf("Lookup(pl) = %q, %v", c, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Error("Lookup(nope) should fail")
	}
}
