package discord

import (
	"testing"

	"github.com/MrWong99/roboto/internal/command"
)

type captureEnqueuer struct{ tasks []*command.Task }

func (c *captureEnqueuer) Enqueue(task *command.Task) bool {
	c.tasks = append(c.tasks, task)
	return true
}

func newTestBot() (*Bot, *captureEnqueuer) {
	enq := &captureEnqueuer{}
	b := &Bot{
		classifier: command.NewClassifier("!"),
		enqueuer:   enq,
	}
	return b, enq
}

func TestHandleMessage_CommandTask(t *testing.T) {
	t.Parallel()

	b, enq := newTestBot()
	b.handleMessage("guild-1", "chan-1", "user-1", "!talk hello there")

	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.tasks))
	}
	task := enq.tasks[0]
	if task.Command != command.CmdTalk {
		t.Errorf("command = %q, want talk", task.Command)
	}
	if task.Source != command.SourceDiscord || task.RoomID != "guild-1" ||
		task.ChannelID != "chan-1" || task.UserID != "user-1" {
		t.Errorf("routing context = %s", task)
	}
	if task.Sender == nil {
		t.Error("task carries no reply capability")
	}
	if !task.Valid() {
		t.Error("task must be dispatchable")
	}
}

func TestHandleMessage_PlainChatBecomesRecord(t *testing.T) {
	t.Parallel()

	b, enq := newTestBot()
	b.handleMessage("guild-1", "chan-1", "user-1", "just chatting away here")

	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.tasks))
	}
	task := enq.tasks[0]
	if task.Command != command.CmdRecord {
		t.Errorf("command = %q, want record", task.Command)
	}
	if len(task.Args) != 1 || task.Args[0] != "just chatting away here" {
		t.Errorf("args = %v, want the full line", task.Args)
	}
}

func TestHandleMessage_EmptyLineIgnored(t *testing.T) {
	t.Parallel()

	b, enq := newTestBot()
	b.handleMessage("guild-1", "chan-1", "user-1", "   ")
	b.handleMessage("guild-1", "chan-1", "user-1", "!")

	if len(enq.tasks) != 0 {
		t.Errorf("enqueued %d tasks for no-op lines, want 0", len(enq.tasks))
	}
}
