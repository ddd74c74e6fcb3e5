package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List portal groups with membership status",
		Args:  cobra.NoArgs,
		RunE:  runGroups,
	}
	cmd.Flags().Bool("cached", false, "Show the last cached catalog without contacting the portal")
	return cmd
}

func runGroups(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cached, _ := cmd.Flags().GetBool("cached")
	if !cached {
		if err := a.requireSession(); err != nil {
			return err
		}
		if err := a.engine.Refresh(cmd.Context()); err != nil {
			return err
		}
	}

	catalog := a.engine.Catalog()
	if len(catalog) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No groups.")
		return nil
	}

	rows := make([][]string, 0, len(catalog))
	for _, g := range catalog {
		rows = append(rows, []string{
			g.ID,
			g.Name,
			strconv.Itoa(g.MemberCount),
			formatYesNo(g.IsMember),
		})
	}
	return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "MEMBERS", "JOINED"}, rows)
}
