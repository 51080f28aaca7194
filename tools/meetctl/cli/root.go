package cli

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xilidan/meetings/tools/meetctl/client"
	"github.com/xilidan/meetings/tools/meetctl/config"
	"github.com/xilidan/meetings/tools/meetctl/credentials"
	"github.com/xilidan/meetings/tools/meetctl/output"
)

type Dependencies struct {
	Config *config.Config
	// Stdin is read by login when it is not a terminal.
	Stdin io.Reader

	server string
	format string
	token  string
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}

	rootCmd := &cobra.Command{
		Use:           "meetctl",
		Short:         "Drive the meetings gateway from the terminal",
		Long:          "meetctl starts and ends meetings, streams text and audio chunks, and reads transcripts, analyses and answers from a meetings gateway.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&deps.server, "server", deps.Config.Server, "gateway base URL")
	flags.StringVarP(&deps.format, "output", "o", deps.Config.Output, "output format: text, json, yaml")
	flags.StringVar(&deps.token, "token", "", "API token (overrides MEETCTL_TOKEN and the keyring)")

	rootCmd.AddCommand(NewStartCmd(deps))
	rootCmd.AddCommand(NewEndCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewSayCmd(deps))
	rootCmd.AddCommand(NewSendCmd(deps))
	rootCmd.AddCommand(NewTranscriptCmd(deps))
	rootCmd.AddCommand(NewAnalyzeCmd(deps))
	rootCmd.AddCommand(NewAskCmd(deps))
	rootCmd.AddCommand(NewTopicsCmd(deps))
	rootCmd.AddCommand(NewSpeakersCmd(deps))
	rootCmd.AddCommand(NewLoginCmd(deps))
	rootCmd.AddCommand(NewLogoutCmd(deps))
	rootCmd.AddCommand(NewTokenCmd(deps))

	return rootCmd
}

// resolveToken prefers --token, then MEETCTL_TOKEN, then the keyring entry
// for the selected server.
func (d *Dependencies) resolveToken() (string, error) {
	if d.token != "" {
		return d.token, nil
	}
	if d.Config.Token != "" {
		return d.Config.Token, nil
	}

	token, err := credentials.Token(d.server)
	if errors.Is(err, credentials.ErrNoToken) {
		return "", nil
	}
	return token, err
}

func (d *Dependencies) client() (*client.Client, error) {
	token, err := d.resolveToken()
	if err != nil {
		return nil, err
	}
	return client.New(d.server, token, d.Config.Timeout), nil
}

func (d *Dependencies) formatter(cmd *cobra.Command) (*output.Formatter, error) {
	format, err := output.ParseFormat(d.format)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(cmd.OutOrStdout(), format), nil
}
