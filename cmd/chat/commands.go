package main

import (
	"chatline/client"
	"chatline/domain"
	"chatline/livesync"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// sidebarWait bounds how long "new" waits for the live conversation list before
// falling back to a server-side duplicate check.
const sidebarWait = 3 * time.Second

var (
	headerStyle  = color.New(color.FgGreen, color.OpBold)
	senderStyle  = color.New(color.FgCyan)
	selfStyle    = color.New(color.FgYellow)
	pendingStyle = color.New(color.FgGray)
)

func newRootCmd(c *client.Client, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "chat",
		Short:         "Two-party chat from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(
		conversationsCmd(c),
		openCmd(c),
		sendCmd(c),
		newConversationCmd(c),
		watchCmd(c),
		searchCmd(c),
		signOutCmd(c),
	)
	return root
}

func conversationsCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List your conversations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conversations, err := c.Conversations(cmd.Context())
			if err != nil {
				return err
			}
			me := c.CurrentUser()
			table := newTable(cmd.OutOrStdout(), "ID", "Recipient")
			for _, conversation := range conversations {
				table.Append([]string{conversation.ID, conversation.Recipient(me)})
			}
			table.Render()
			return nil
		},
	}
}

func openCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "open <conversation-id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := c.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Sprint(page.Title))
			fmt.Fprintln(out, pendingStyle.Sprint(page.Recipient.LastSeenLabel()))
			printMessages(out, page.Messages, c.CurrentUser())
			return nil
		},
	}
}

func sendCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation-id> <text...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			composer := client.NewComposer(c, args[0])
			composer.SetDraft(strings.Join(args[1:], " "))
			sent, err := composer.Submit(cmd.Context())
			if err != nil {
				return err
			}
			if !sent {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to send")
			}
			return nil
		},
	}
}

func newConversationCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "new <email>",
		Short: "Start a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sidebar := client.NewSidebar(c)
			go func() {
				_ = sidebar.Run(ctx)
			}()
			known := func() []domain.Conversation { return nil }
			select {
			case <-sidebar.Ready():
				known = sidebar.Conversations
			case <-time.After(sidebarWait):
			case <-ctx.Done():
				return ctx.Err()
			}

			dialog := client.NewConversationDialog(c, known)
			dialog.SetRecipient(args[0])
			result, err := dialog.Submit(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !result.Created {
				fmt.Fprintf(out, "Not created: %s\n", result.Reason)
				return nil
			}
			fmt.Fprintf(out, "Conversation %s created\n", headerStyle.Sprint(result.Conversation.ID))
			return nil
		},
	}
}

func watchCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <conversation-id>",
		Short: "Follow a conversation live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			me := c.CurrentUser()
			return c.WatchMessages(cmd.Context(), args[0], func(envelope livesync.Envelope[domain.Message]) {
				if envelope.Loading {
					fmt.Fprintln(out, pendingStyle.Sprint("Loading..."))
					return
				}
				fmt.Fprintln(out, headerStyle.Sprintf("--- %s (%d messages)", envelope.State, len(envelope.Items)))
				printMessages(out, envelope.Items, me)
			})
		},
	}
}

func searchCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search in conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, err := c.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Conversation", "From", "Text")
			for _, hit := range hits {
				table.Append([]string{hit.ConversationID, hit.Sender, hit.Text})
			}
			table.Render()
			return nil
		},
	}
}

func signOutCmd(c *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Revoke the current token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.SignOut(cmd.Context())
		},
	}
}

func printMessages(out io.Writer, messages []domain.Message, me string) {
	for _, message := range messages {
		sentAt := pendingStyle.Sprint("sending...")
		if message.SentAt != nil {
			sentAt = *message.SentAt
		}
		style := senderStyle
		if message.Sender == me {
			style = selfStyle
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", sentAt, style.Sprint(message.Sender), message.Body)
	}
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	return table
}
