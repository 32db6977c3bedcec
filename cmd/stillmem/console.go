package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/stillpoint-app/stillmem/pkg/memory"
)

func newConsoleCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive admin search and moderation loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()
			return runConsole(cmd.Context(), svc, actor)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "admin", "Acting admin id for the audit log")
	return cmd
}

const consoleHelp = `commands:
  search <text>                 free-text search over content and tags
  owner <userID> [text]         search one user's memories
  type <itemType> [text]        filter by type
  pinned                        list pinned memories
  expired                       list expired memories
  pin <itemID>                  pin (never expires, rank boost)
  unpin <itemID>                unpin (expiry restamped from policy)
  rm <itemID>                   delete one memory
  events [userID]               recent audit events
  help                          this text
  exit`

func runConsole(ctx context.Context, svc *memory.Service, actor string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "stillmem> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".stillmem_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("stillmem admin console (type 'help')")
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			fmt.Printf("read error: %v\n", err)
			continue
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		if err := dispatchConsole(ctx, svc, actor, input); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func dispatchConsole(ctx context.Context, svc *memory.Service, actor, input string) error {
	fields := strings.Fields(input)
	verb := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(input, verb))

	switch verb {
	case "help":
		fmt.Println(consoleHelp)
		return nil
	case "search":
		return consoleSearch(ctx, svc, memory.ConsoleFilters{Query: rest})
	case "owner":
		if len(fields) < 2 {
			return fmt.Errorf("usage: owner <userID> [text]")
		}
		return consoleSearch(ctx, svc, memory.ConsoleFilters{
			OwnerID: fields[1],
			Query:   strings.Join(fields[2:], " "),
		})
	case "type":
		if len(fields) < 2 {
			return fmt.Errorf("usage: type <itemType> [text]")
		}
		return consoleSearch(ctx, svc, memory.ConsoleFilters{
			Type:  memory.ItemType(fields[1]),
			Query: strings.Join(fields[2:], " "),
		})
	case "pinned":
		return consoleSearch(ctx, svc, memory.ConsoleFilters{PinnedOnly: true})
	case "expired":
		return consoleSearch(ctx, svc, memory.ConsoleFilters{ExpiredOnly: true})
	case "pin", "unpin":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s <itemID>", verb)
		}
		var item memory.MemoryItem
		var err error
		if verb == "pin" {
			item, err = svc.PinItem(ctx, fields[1], actor)
		} else {
			item, err = svc.UnpinItem(ctx, fields[1], actor)
		}
		if err != nil {
			return err
		}
		printItem(item)
		return nil
	case "rm":
		if len(fields) != 2 {
			return fmt.Errorf("usage: rm <itemID>")
		}
		if err := svc.DeleteItemAdmin(ctx, fields[1], actor); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	case "events":
		owner := ""
		if len(fields) > 1 {
			owner = fields[1]
		}
		events, err := svc.ListEvents(ctx, owner, "", 20)
		if err != nil {
			return err
		}
		for _, ev := range events {
			printEvent(ev)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q (type 'help')", verb)
	}
}

func consoleSearch(ctx context.Context, svc *memory.Service, f memory.ConsoleFilters) error {
	result, err := svc.SearchConsole(ctx, f)
	if err != nil {
		return err
	}
	if len(result.Items) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, it := range result.Items {
		printItem(it)
	}
	return nil
}
