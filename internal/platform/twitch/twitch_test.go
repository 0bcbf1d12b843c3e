package twitch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/roboto/internal/command"
)

type captureEnqueuer struct {
	mu    sync.Mutex
	tasks []*command.Task
}

func (c *captureEnqueuer) Enqueue(task *command.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
	return true
}

func (c *captureEnqueuer) all() []*command.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*command.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func newTestBot(channels ...string) (*Bot, *captureEnqueuer) {
	enq := &captureEnqueuer{}
	b := New(Config{
		Nick:     "somebot",
		Token:    "oauth:secret",
		Channels: channels,
	}, command.NewClassifier("!"), enq)
	return b, enq
}

func TestHandleLine_PingAnswered(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot("somechan")
	got := b.handleLine("PING :tmi.twitch.tv")
	if got != "PONG :tmi.twitch.tv" {
		t.Errorf("reply = %q, want PONG with the ping payload", got)
	}
}

func TestHandleLine_ChatEnqueued(t *testing.T) {
	t.Parallel()

	b, enq := newTestBot("somechan")
	b.handleLine(":viewer!viewer@viewer.tmi.twitch.tv PRIVMSG #somechan :!talk hello")

	tasks := enq.all()
	if len(tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(tasks))
	}
	task := tasks[0]
	if task.Command != command.CmdTalk {
		t.Errorf("command = %q, want talk", task.Command)
	}
	if task.RoomID != "twitch:somechan" {
		t.Errorf("room = %q, want the namespaced channel", task.RoomID)
	}
	if task.Source != command.SourceTwitch || task.UserID != "viewer" || task.ChannelID != "somechan" {
		t.Errorf("routing context = %s", task)
	}
	if !task.Valid() {
		t.Error("task must be dispatchable")
	}
}

func TestHandleLine_OwnMessagesIgnored(t *testing.T) {
	t.Parallel()

	b, enq := newTestBot("somechan")
	b.handleLine(":somebot!somebot@somebot.tmi.twitch.tv PRIVMSG #somechan :i am the bot")

	if len(enq.all()) != 0 {
		t.Error("the bot must not classify its own messages")
	}
}

func TestHandleLine_ServerNoiseIgnored(t *testing.T) {
	t.Parallel()

	b, enq := newTestBot("somechan")
	for _, line := range []string{
		":tmi.twitch.tv 001 somebot :Welcome, GLHF!",
		":somebot!somebot@somebot.tmi.twitch.tv JOIN #somechan",
		":tmi.twitch.tv CAP * ACK :twitch.tv/tags",
	} {
		if reply := b.handleLine(line); reply != "" {
			t.Errorf("line %q produced reply %q", line, reply)
		}
	}
	if len(enq.all()) != 0 {
		t.Error("server noise must not enqueue tasks")
	}
}

func TestLoginLines(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot("chanone", "chantwo")
	got := b.loginLines()
	want := []string{"PASS oauth:secret", "NICK somebot", "JOIN #chanone", "JOIN #chantwo"}
	if len(got) != len(want) {
		t.Fatalf("loginLines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestRun_EndToEnd exercises the full connection path against a local
// WebSocket IRC server: authentication, ping handling, and chat classification.
func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	received := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck
		ctx := r.Context()

		// Login sequence: PASS, NICK, JOIN.
		for i := 0; i < 3; i++ {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			received <- strings.TrimSpace(string(data))
		}

		lines := ":viewer!v@h PRIVMSG #somechan :hello from twitch chat\r\nPING :tmi.twitch.tv\r\n"
		if err := conn.Write(ctx, websocket.MessageText, []byte(lines)); err != nil {
			return
		}

		// The ping must be answered.
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		received <- strings.TrimSpace(string(data))
		<-ctx.Done()
	}))
	defer srv.Close()

	enq := &captureEnqueuer{}
	b := New(Config{
		Nick:     "somebot",
		Token:    "oauth:secret",
		Channels: []string{"somechan"},
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
	}, command.NewClassifier("!"), enq)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx) //nolint:errcheck // always returns nil

	wantLines := []string{"PASS oauth:secret", "NICK somebot", "JOIN #somechan", "PONG :tmi.twitch.tv"}
	for _, want := range wantLines {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("server received %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(enq.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("chat line was not enqueued")
		}
		time.Sleep(5 * time.Millisecond)
	}
	task := enq.all()[0]
	if task.Command != command.CmdRecord || task.RoomID != "twitch:somechan" {
		t.Errorf("task = %s", task)
	}
}
