package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ncn914491/groupsync/internal/events"
	"github.com/Ncn914491/groupsync/internal/models"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <group-id>",
		Short: "Follow a group's messages until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}

	groupID := args[0]
	if err := a.engine.Refresh(cmd.Context()); err != nil {
		return err
	}
	if err := a.engine.Open(groupID); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	var (
		mu         sync.Mutex
		seen       = make(map[string]struct{})
		lastAuthor string
	)

	printNew := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, run := range a.engine.Runs() {
			headerPrinted := false
			for _, msg := range run.Messages {
				key := msg.ID
				if key == "" {
					key = msg.LocalID
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}

				if !headerPrinted && run.Author.ID != lastAuthor {
					name := run.Author.DisplayName
					if name == "" {
						name = run.Author.ID
					}
					fmt.Fprintf(out, "\n%s  %s\n", name, run.StartedAt.Local().Format("15:04"))
				}
				headerPrinted = true
				lastAuthor = run.Author.ID
				fmt.Fprintf(out, "  %s\n", msg.Content)
			}
		}
	}

	halted := make(chan struct{})
	err = a.engine.Events().Subscribe("watch", events.Filter{
		EventTypes: []models.EventType{
			models.EventTypeSyncRefreshed,
			models.EventTypeAuthExpired,
		},
	}, func(event *models.Event) {
		switch event.Type {
		case models.EventTypeSyncRefreshed:
			printNew()
		case models.EventTypeAuthExpired:
			close(halted)
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = a.engine.Events().Unsubscribe("watch") }()

	fmt.Fprintf(out, "Watching %s (ctrl-c to stop)\n", groupID)
	printNew()

	select {
	case <-ctx.Done():
		return nil
	case <-halted:
		return fmt.Errorf("session expired, log in again")
	}
}
