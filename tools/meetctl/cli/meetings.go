package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func NewStartCmd(deps *Dependencies) *cobra.Command {
	var participants []string

	cmd := &cobra.Command{
		Use:   "start NAME",
		Short: "Start a meeting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			meeting, err := c.StartMeeting(cmd.Context(), strings.Join(args, " "), participants)
			if err != nil {
				return err
			}
			return formatter.Meeting(meeting)
		},
	}

	cmd.Flags().StringSliceVarP(&participants, "participant", "p", nil, "participant name (repeatable)")
	return cmd
}

func NewEndCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "end MEETING_ID",
		Short: "End a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			meeting, err := c.EndMeeting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return formatter.Meeting(meeting)
		},
	}
}

func NewListCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List meetings, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			list, err := c.ListMeetings(cmd.Context())
			if err != nil {
				return err
			}
			return formatter.Meetings(list)
		},
	}
}

func NewShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show MEETING_ID",
		Short: "Show a meeting and its ingest counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			meeting, err := c.GetMeeting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return formatter.Meeting(meeting)
		},
	}
}

func NewSayCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "say MEETING_ID SPEAKER TEXT...",
		Short: "Append an already transcribed line",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := deps.formatter(cmd)
			if err != nil {
				return err
			}
			c, err := deps.client()
			if err != nil {
				return err
			}

			u, err := c.SubmitText(cmd.Context(), args[0], args[1], strings.Join(args[2:], " "))
			if err != nil {
				return fmt.Errorf("failed to append text: %w", err)
			}
			return formatter.Utterance(u)
		},
	}
}
