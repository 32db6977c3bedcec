package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/stillpoint-app/stillmem/pkg/config"
	"github.com/stillpoint-app/stillmem/pkg/memory"
)

func executeCLI() error {
	return buildRootCommand().Execute()
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "stillmem",
		Short: "Memory engine admin console for the Stillpoint membership app",
		Long: strings.TrimSpace(`stillmem manages the chat assistant's long-term memory store.

It captures facts from chat turns, recalls ranked context for a user,
enforces the retention policy and exposes the audit log.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newRememberCommand())
	root.AddCommand(newRecallCommand())
	root.AddCommand(newForgetCommand())
	root.AddCommand(newRetentionCommand())
	root.AddCommand(newEventsCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newSweepCommand())
	root.AddCommand(newConsoleCommand())
	return root
}

func openService() (*memory.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return memory.NewService(memory.Config{
		Workspace:      cfg.Workspace,
		RecallLimit:    cfg.RecallLimit,
		WorkingSetCap:  cfg.WorkingSetCap,
		DedupeCap:      cfg.DedupeCap,
		DedupeOverlap:  cfg.DedupeOverlap,
		MinContentLen:  cfg.MinContentLen,
		MaxPerTurn:     cfg.MaxCandidatesPerTurn,
		DefaultConfide: cfg.DefaultConfidence,
	})
}

func newRememberCommand() *cobra.Command {
	var owner, scope, itemType, source, actor string
	var tags []string
	var confidence int

	cmd := &cobra.Command{
		Use:   "remember [content]",
		Short: "Store one fact through the dedupe writer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			id, err := svc.Memorize(cmd.Context(), memory.MemorizeInput{
				OwnerID:    owner,
				Scope:      memory.Scope(scope),
				Type:       memory.ItemType(itemType),
				Content:    strings.Join(args, " "),
				Tags:       tags,
				Confidence: confidence,
				Source:     memory.Source(source),
				ActorID:    actor,
			})
			if err != nil {
				return err
			}
			if id == "" {
				fmt.Println("discarded (too short or sensitive)")
				return nil
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owning user id (required unless --scope global)")
	cmd.Flags().StringVar(&scope, "scope", "user", "Scope: user or global")
	cmd.Flags().StringVarP(&itemType, "type", "t", "note", "Item type")
	cmd.Flags().StringVar(&source, "source", "admin", "Provenance: chat, quiz, journal, admin")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable, max 8 kept)")
	cmd.Flags().IntVar(&confidence, "confidence", 0, "Confidence 0-100 (default 60)")
	cmd.Flags().StringVar(&actor, "actor", "", "Acting admin id for the audit log")
	return cmd
}

func newRecallCommand() *cobra.Command {
	var owner string
	var limit int

	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Rank and print the top memories for a user",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			items, err := svc.Retrieve(cmd.Context(), owner, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("no live memories matched")
				return nil
			}
			for _, it := range items {
				printItem(it)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owning user id")
	cmd.Flags().IntVarP(&limit, "limit", "l", 8, "Max results")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newForgetCommand() *cobra.Command {
	var owner, actor string
	var includePinned bool

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Bulk-delete a user's memories (irreversible)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			count, err := svc.ForgetUserMemories(cmd.Context(), owner, includePinned, actor)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d memories for %s (pinned included: %t)\n", count, owner, includePinned)
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Owning user id")
	cmd.Flags().BoolVar(&includePinned, "include-pinned", false, "Also delete pinned memories")
	cmd.Flags().StringVar(&actor, "actor", "", "Acting admin id for the audit log")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newRetentionCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "retention [days]",
		Short: "Show or set the global retention policy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if len(args) == 0 {
				days, err := svc.RetentionPolicyDays(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("retention: %d days\n", days)
				return nil
			}
			var requested int
			if _, err := fmt.Sscanf(args[0], "%d", &requested); err != nil {
				return fmt.Errorf("invalid days %q", args[0])
			}
			stored, err := svc.SetRetentionPolicy(cmd.Context(), requested, actor)
			if err != nil {
				return err
			}
			fmt.Printf("retention set to %d days\n", stored)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "Acting admin id for the audit log")
	return cmd
}

func newEventsCommand() *cobra.Command {
	var owner, action string
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Page the append-only audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			events, err := svc.ListEvents(cmd.Context(), owner, memory.EventAction(action), limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				printEvent(ev)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&owner, "owner", "o", "", "Filter by affected user id")
	cmd.Flags().StringVar(&action, "action", "", "Filter by action")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Max events")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			stats, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("items: %d (pinned %d, expired %d)\n", stats.TotalItems, stats.PinnedItems, stats.ExpiredItems)
			for t, n := range stats.ByType {
				fmt.Printf("  %-13s %d\n", t, n)
			}
			fmt.Printf("events: %d\n", stats.TotalEvents)
			return nil
		},
	}
}

func newSweepCommand() *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired memories, once or on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if schedule == "" {
				count, err := svc.SweepExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("swept %d expired memories\n", count)
				return nil
			}

			if !gronx.New().IsValid(schedule) {
				return fmt.Errorf("invalid cron expression %q", schedule)
			}
			fmt.Printf("sweeping on schedule %q (Ctrl+C to stop)\n", schedule)
			for {
				next, err := gronx.NextTick(schedule, false)
				if err != nil {
					return err
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-time.After(time.Until(next)):
				}
				count, err := svc.SweepExpired(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("%s swept %d expired memories\n", time.Now().Format(time.RFC3339), count)
			}
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression; when set, sweep repeatedly")
	return cmd
}

func printItem(it memory.MemoryItem) {
	pin := " "
	if it.Pinned {
		pin = "*"
	}
	expiry := "never"
	if it.ExpiresAtMS > 0 {
		expiry = time.UnixMilli(it.ExpiresAtMS).Format("2006-01-02")
	}
	fmt.Printf("%s [%s/%s]%s conf=%d expires=%s\n    %s\n", it.ID, it.Scope, it.Type, pin, it.Confidence, expiry, it.Content)
	if len(it.Tags) > 0 {
		fmt.Printf("    tags: %s\n", strings.Join(it.Tags, ", "))
	}
}

func printEvent(ev memory.MemoryEvent) {
	actor := ev.ActorID
	if actor == "" {
		actor = "system"
	}
	at := time.UnixMilli(ev.CreatedAtMS).Format(time.RFC3339)
	fmt.Printf("%s %-16s actor=%s user=%s %v\n", at, ev.Action, actor, ev.UserID, ev.Details)
}
