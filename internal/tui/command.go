package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

var commandAliases = map[string]string{
	"q":  "quit",
	"q!": "quit",
	"h":  "help",
	"j":  "join",
	"o":  "open",
	"s":  "search",
	"r":  "room",
	"f":  "filter",
}

// ParseCommand parses a command string, with or without the leading ':'.
// Short aliases resolve to their full names.
func ParseCommand(input string) Command {
	input = strings.TrimPrefix(strings.TrimSpace(input), ":")
	name, args, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	if full, ok := commandAliases[name]; ok {
		name = full
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}
}

// Fields splits the arguments on whitespace.
func (c Command) Fields() []string {
	return strings.Fields(c.Args)
}
