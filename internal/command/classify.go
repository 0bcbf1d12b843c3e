package command

import "strings"

// Classifier parses raw chat lines into typed Tasks. It is stateless and safe
// for concurrent use.
type Classifier struct {
	// Prefix is the command prefix character. Empty means "!".
	Prefix string
}

// NewClassifier creates a Classifier for the given prefix. An empty prefix
// selects the default "!".
func NewClassifier(prefix string) *Classifier {
	if prefix == "" {
		prefix = "!"
	}
	return &Classifier{Prefix: prefix}
}

// Classify turns line into a Task, or nil when the line produces no work.
//
// Only lines whose first whitespace-separated token carries the command
// prefix can select a command: the prefix is stripped and the remainder is
// matched case-insensitively against the known command names. A match yields
// that command with the remaining tokens as arguments. Every other non-empty
// line — unprefixed chat and prefixed-but-unknown names alike — classifies as
// [CmdRecord] carrying the complete original line as its single argument:
// unrecognised chat is training data, never an error.
//
// Empty lines and lines consisting of only the prefix yield nil.
func (c *Classifier) Classify(line string) *Task {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "!"
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	if !strings.HasPrefix(fields[0], prefix) {
		return NewTask(CmdRecord, []string{line})
	}

	name := strings.TrimPrefix(fields[0], prefix)
	if name == "" {
		return nil
	}

	cmd, ok := Lookup(strings.ToLower(name))
	if !ok {
		return NewTask(CmdRecord, []string{line})
	}
	if cmd == CmdRecord {
		// record needs the whole sentence, not just the tail.
		return NewTask(CmdRecord, []string{line})
	}
	return NewTask(cmd, fields[1:])
}
