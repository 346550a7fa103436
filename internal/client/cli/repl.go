package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the command surface the REPL dispatches to.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Tenant(ctx context.Context, args []string) error
	Sync(ctx context.Context, args []string) error
	Push(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Clear(ctx context.Context, args []string) error
	AddDef(ctx context.Context, args []string) error
	AddCond(ctx context.Context, args []string) error
	Phrases(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  tenant [id|-]                              show or switch tenant (- for personal mode)
  sync <table>                               pull changes since the last sync
  push <table>                               send local edits
  list <table>                               list cached records
  show <table> <id>                          show one record
  clear <table>                              drop cached rows, next sync is a full pull
  adddef <survey> <element> <name...>        add a provisional component to a survey
  addcond <survey> <element> <name> <text>   add a provisional condition to a survey
  phrases <survey> <component-id>            phrases offered for a placed component
  status <table>                             watermark and last sync outcome
  exit | quit`

// runREPL starts a read–eval–print loop.
//
// It reads a line from scanner, splits it into fields, and dispatches the
// first one to a. Errors returned by handlers are printed and the loop goes
// on. The loop exits on scanner EOF, on "exit"/"quit", or when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, w io.Writer) {
	handlers := map[string]func(context.Context, []string) error{
		"tenant":  a.Tenant,
		"sync":    a.Sync,
		"push":    a.Push,
		"l":       a.List,
		"list":    a.List,
		"show":    a.Show,
		"clear":   a.Clear,
		"adddef":  a.AddDef,
		"addcond": a.AddCond,
		"phrases": a.Phrases,
		"status":  a.Status,
	}

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "fk %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			fmt.Fprintln(w, helpText)
			continue
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		}

		h, ok := handlers[cmd]
		if !ok {
			fmt.Fprintln(w, "Unknown command:", cmd)
			continue
		}
		if err := h(ctx, args); err != nil {
			fmt.Fprintln(w, "error:", err)
		}
	}
}
