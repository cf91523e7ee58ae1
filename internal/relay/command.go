package relay

import (
	"fmt"
	"strings"
)

const (
	// SubcommandName is the hidden CLI entry point the OS launches.
	SubcommandName = "relay"

	// DesktopURLField is the desktop-entry field code replaced by the URL.
	DesktopURLField = "%u"
	// WindowsURLField is the registry placeholder replaced by the URL.
	WindowsURLField = "%1"
)

// Command is the generated relay invocation: the executable to run and the
// arguments that precede the captured URL.
type Command struct {
	Path string
	Args []string
}

// NewCommand builds the invocation that forwards a URL to addr. An empty
// token disables peer verification.
func NewCommand(exe, addr, token string) Command {
	args := []string{SubcommandName, "--" + flagAddr, addr}
	if token != "" {
		args = append(args, "--"+flagToken, token)
	}
	return Command{Path: exe, Args: args}
}

// WithURL returns the full argv for delivering rawURL.
func (c Command) WithURL(rawURL string) []string {
	argv := make([]string, 0, len(c.Args)+2)
	argv = append(argv, c.Path)
	argv = append(argv, c.Args...)
	return append(argv, rawURL)
}

// DesktopExec renders the Exec value of a freedesktop desktop entry,
// including the trailing %u field code.
func (c Command) DesktopExec() string {
	parts := make([]string, 0, len(c.Args)+2)
	parts = append(parts, quoteDesktopArg(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quoteDesktopArg(a))
	}
	parts = append(parts, DesktopURLField)
	return strings.Join(parts, " ")
}

// WindowsCommandLine renders the shell\open\command default value.
func (c Command) WindowsCommandLine() string {
	parts := make([]string, 0, len(c.Args)+2)
	parts = append(parts, quoteWindowsArg(c.Path, true))
	for _, a := range c.Args {
		parts = append(parts, quoteWindowsArg(a, false))
	}
	parts = append(parts, `"`+WindowsURLField+`"`)
	return strings.Join(parts, " ")
}

// ShellScript renders the macOS bundle stub. The URL arrives as an Apple
// event rather than an argument, so the stub passes --apple-event.
func (c Command) ShellScript() string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\nexec ")
	b.WriteString(quoteShellArg(c.Path))
	for _, a := range c.Args {
		b.WriteString(" ")
		b.WriteString(quoteShellArg(a))
	}
	b.WriteString(" --" + flagAppleEvent + "\n")
	return b.String()
}

const desktopReserved = " \t\n\"'\\><~|&;$*?#()`"

// quoteDesktopArg applies the desktop entry Exec quoting rules and then the
// string value escaping for backslashes.
func quoteDesktopArg(arg string) string {
	arg = strings.ReplaceAll(arg, "%", "%%")
	if arg != "" && !strings.ContainsAny(arg, desktopReserved) {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range arg {
		switch r {
		case '"', '`', '$', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return strings.ReplaceAll(b.String(), `\`, `\\`)
}

// SplitDesktopExec parses an Exec value back into argv, the inverse of
// DesktopExec. Field codes are kept verbatim.
func SplitDesktopExec(exec string) ([]string, error) {
	exec = strings.ReplaceAll(exec, `\\`, `\`)

	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		hasArg  bool
	)
	runes := []rune(exec)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote && r == '\\':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("dangling escape in Exec value")
			}
			i++
			cur.WriteRune(runes[i])
		case r == '"':
			inQuote = !inQuote
			hasArg = true
		case !inQuote && (r == ' ' || r == '\t'):
			if hasArg {
				args = append(args, cur.String())
				cur.Reset()
				hasArg = false
			}
		case r == '%' && i+1 < len(runes) && runes[i+1] == '%':
			cur.WriteRune('%')
			i++
			hasArg = true
		default:
			cur.WriteRune(r)
			hasArg = true
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote in Exec value")
	}
	if hasArg {
		args = append(args, cur.String())
	}
	return args, nil
}

// quoteWindowsArg follows the CommandLineToArgvW rules. The program path is
// always quoted because Explorer resolves it before argument parsing.
func quoteWindowsArg(arg string, force bool) string {
	if !force && arg != "" && !strings.ContainsAny(arg, " \t\"") {
		return arg
	}

	var b strings.Builder
	b.WriteByte('"')
	slashes := 0
	for _, r := range arg {
		switch r {
		case '\\':
			slashes++
		case '"':
			// backslashes before a quote are doubled, then the quote is escaped
			b.WriteString(strings.Repeat(`\`, slashes+1))
			slashes = 0
		default:
			slashes = 0
		}
		b.WriteRune(r)
	}
	// trailing backslashes would otherwise escape the closing quote
	b.WriteString(strings.Repeat(`\`, slashes))
	b.WriteByte('"')
	return b.String()
}

// SplitWindowsCommandLine parses a command line with the CommandLineToArgvW
// rules, the inverse of WindowsCommandLine.
func SplitWindowsCommandLine(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		hasArg  bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			n := 0
			for i < len(runes) && runes[i] == '\\' {
				n++
				i++
			}
			if i < len(runes) && runes[i] == '"' {
				cur.WriteString(strings.Repeat(`\`, n/2))
				if n%2 == 1 {
					cur.WriteRune('"')
				} else {
					inQuote = !inQuote
				}
			} else {
				cur.WriteString(strings.Repeat(`\`, n))
				i--
			}
			hasArg = true
		case r == '"':
			inQuote = !inQuote
			hasArg = true
		case !inQuote && (r == ' ' || r == '\t'):
			if hasArg {
				args = append(args, cur.String())
				cur.Reset()
				hasArg = false
			}
		default:
			cur.WriteRune(r)
			hasArg = true
		}
	}
	if hasArg {
		args = append(args, cur.String())
	}
	return args
}

func quoteShellArg(arg string) string {
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
