package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <group-id> <message>",
		Short: "Send a message to a group",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runSend,
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}

	groupID := args[0]
	content := strings.Join(args[1:], " ")

	if err := a.engine.Refresh(cmd.Context()); err != nil {
		return err
	}
	if err := a.engine.Open(groupID); err != nil {
		return err
	}

	a.engine.SetDraft(content)
	if err := a.engine.Send(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Sent.")
	return nil
}
