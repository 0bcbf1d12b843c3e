package twitch

import "strings"

// message is one parsed IRC line, reduced to the fields the adapter acts on.
type message struct {
	// nick is the sender's nickname, extracted from the prefix.
	nick string

	// command is the IRC command or numeric, upper-cased (e.g. "PRIVMSG").
	command string

	// channel is the target channel without the "#" prefix.
	channel string

	// text is the trailing parameter (chat text, ping payload).
	text string
}

// parseLine parses one raw IRC line of the form
//
//	[@tags] [:prefix] COMMAND [params] [:trailing]
//
// Tags and unused params are discarded. It returns false for lines with no
// command.
func parseLine(line string) (message, bool) {
	var msg message

	// IRCv3 tags.
	if strings.HasPrefix(line, "@") {
		_, rest, ok := strings.Cut(line, " ")
		if !ok {
			return message{}, false
		}
		line = rest
	}

	// Prefix: ":nick!user@host".
	if strings.HasPrefix(line, ":") {
		prefix, rest, ok := strings.Cut(line[1:], " ")
		if !ok {
			return message{}, false
		}
		msg.nick, _, _ = strings.Cut(prefix, "!")
		line = rest
	}

	// Split off the trailing parameter.
	var trailing string
	if head, tail, ok := strings.Cut(line, " :"); ok {
		line = head
		trailing = tail
	}
	msg.text = trailing

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return message{}, false
	}
	msg.command = strings.ToUpper(fields[0])
	for _, f := range fields[1:] {
		if strings.HasPrefix(f, "#") {
			msg.channel = f[1:]
			break
		}
	}
	return msg, true
}
