package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const replHelp = `
decode-cli Interactive Shell — available commands:

  recognize <session-id> <features-json>   Push a feature block and run recognize()
    recognize <session-id> <features-json> --block-size N
  lattice <session-id>                     Fetch the current word lattice
    lattice <session-id> --format slf|msgpack
  best <session-id>                        Fetch the single best timed word sequence

  Shell:
    \help                            Show this help
    \session [id]                    Show/switch active session
    \status                          Show connection info
    \quit  (or exit, quit, Ctrl-D)    Exit
`

// runREPL starts the interactive shell. conn is already parsed by the
// cobra PersistentPreRunE.
func runREPL(c *cli) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := c.ensureClient(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "error: cannot reach %s — %v\n", c.conn.BaseURL(), err)
		os.Exit(1)
	}
	cancel()

	fmt.Printf("Connected to decode server at %s\nType \\help for commands, \\quit to exit.\n\n", c.conn.BaseURL())

	activeSession := c.conn.SessionID
	scanner := bufio.NewScanner(os.Stdin)

	for {
		prompt := "decode"
		if activeSession != "" {
			prompt = fmt.Sprintf("decode[%s]", activeSession)
		}
		fmt.Printf("%s> ", prompt)

		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if done := dispatchREPL(c, line, &activeSession); done {
			fmt.Println("Bye.")
			break
		}
	}
}

// dispatchREPL parses and executes one REPL line. Returns true when the
// user wants to quit.
func dispatchREPL(c *cli, line string, activeSession *string) bool {
	parts := tokenize(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case `\quit`, `\q`, "exit", "quit":
		return true

	case `\help`, `\h`, "help":
		fmt.Print(replHelp)

	case `\session`:
		if len(parts) < 2 {
			if *activeSession == "" {
				fmt.Println("no active session (use \\session <id> to set one)")
			} else {
				fmt.Printf("active session: %s\n", *activeSession)
			}
		} else {
			*activeSession = parts[1]
			fmt.Printf("switched to session: %s\n", *activeSession)
		}

	case `\status`:
		fmt.Printf("server:  %s\n", c.conn.BaseURL())
		fmt.Printf("session: %s\n", emptyOr(*activeSession, "(none)"))

	case "recognize":
		replRecognize(c, parts[1:], activeSession)

	case "lattice":
		replLattice(c, parts[1:], activeSession)

	case "best":
		replBest(c, parts[1:], activeSession)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q — type \\help for available commands\n", cmd)
	}

	return false
}

func replRecognize(c *cli, args []string, activeSession *string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: recognize <session-id> <features-json> [--block-size N]")
		return
	}
	sessionID := args[0]
	features := args[1]
	blockSize := 1 << 30

	for i := 2; i < len(args); i++ {
		if args[i] == "--block-size" && i+1 < len(args) {
			i++
			if n, err := strconv.Atoi(args[i]); err == nil {
				blockSize = n
			}
		}
	}

	*activeSession = sessionID
	out, err := c.callTool(context.Background(), "decoder_recognize", map[string]any{
		"session_id": sessionID,
		"features":   features,
		"block_size": blockSize,
	})
	reportREPLResult(out, err)
}

func replLattice(c *cli, args []string, activeSession *string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: lattice <session-id> [--format slf|msgpack]")
		return
	}
	sessionID := args[0]
	format := "slf"

	for i := 1; i < len(args); i++ {
		if args[i] == "--format" && i+1 < len(args) {
			i++
			format = args[i]
		}
	}

	*activeSession = sessionID
	out, err := c.callTool(context.Background(), "decoder_get_lattice", map[string]any{
		"session_id": sessionID,
		"format":     format,
	})
	reportREPLResult(out, err)
}

func replBest(c *cli, args []string, activeSession *string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: best <session-id>")
		return
	}
	sessionID := args[0]
	*activeSession = sessionID

	out, err := c.callTool(context.Background(), "decoder_get_timed_best_result", map[string]any{
		"session_id": sessionID,
	})
	reportREPLResult(out, err)
}

func reportREPLResult(out map[string]any, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	_ = printJSON(out)
}

func emptyOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// tokenize splits a line into tokens respecting quoted strings, so a
// features-json argument containing spaces can be passed quoted.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case inQuote:
			if ch == quoteChar {
				inQuote = false
			} else {
				cur.WriteRune(ch)
			}
		case ch == '"' || ch == '\'':
			inQuote = true
			quoteChar = ch
		case ch == ' ' || ch == '\t':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(ch)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
