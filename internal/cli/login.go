package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Ncn914491/groupsync/internal/auth"
)

// readPasswordFunc is swappable in tests.
var readPasswordFunc = term.ReadPassword

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [username]",
		Short: "Authenticate against the portal and store the credential",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLogin,
	}
	cmd.Flags().String("password", "", "Password (prompted when omitted)")
	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	username := ""
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Username: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username required")
	}

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = string(raw)
	}
	if password == "" {
		return fmt.Errorf("password required")
	}

	client := &http.Client{Timeout: cfg.Server.Timeout}
	token, err := auth.Login(cmd.Context(), client, cfg.Server.BaseURL, username, password)
	if err != nil {
		return err
	}

	if err := auth.SaveToken(cfg.TokenPath(), token); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
	return nil
}
