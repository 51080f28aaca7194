package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xilidan/meetings/pkg/jwt"
	"github.com/xilidan/meetings/tools/meetctl/client"
	"github.com/xilidan/meetings/tools/meetctl/credentials"
)

func NewLoginCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store an API token for the selected server in the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}

			token := deps.token
			if token == "" {
				token, err = readToken(cmd, deps)
				if err != nil {
					return err
				}
			}
			if token == "" {
				return fmt.Errorf("token is empty")
			}

			// The token is only stored once the server accepts it.
			c := client.New(deps.server, token, deps.Config.Timeout)
			if _, err := c.ListMeetings(cmd.Context()); err != nil {
				return fmt.Errorf("token rejected by %s: %w", deps.server, err)
			}

			if err := credentials.SaveToken(deps.server, token); err != nil {
				return err
			}
			formatter.Info(fmt.Sprintf("Logged in to %s (%s)", deps.server, credentials.Mask(token)))
			return nil
		},
	}
}

func readToken(cmd *cobra.Command, deps *Dependencies) (string, error) {
	if f, ok := deps.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "API token: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(deps.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func NewLogoutCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored token for the selected server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			if err := credentials.DeleteToken(deps.server); err != nil {
				return err
			}
			formatter.Info("Logged out of " + deps.server)
			return nil
		},
	}
}

// NewTokenCmd mints a token locally for operators who hold the gateway's
// signing secret.
func NewTokenCmd(deps *Dependencies) *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API token with the gateway's JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			token, err := jwt.Generate(cmd.Context(), subject, secret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to $JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "meetctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", jwt.DefaultTTL, "token lifetime")
	return cmd
}
