package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"maildash/models"
	"maildash/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the mailbox on the server and reload it",
	Args:  cobra.NoArgs,
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		if err := st.FetchEmails(ctx, sess.UserID, true); err != nil {
			return err
		}
		stats := st.Stats()
		return e.print(stats, func(w io.Writer) {
			fmt.Fprintf(w, "%d emails, %d unread\n", stats.Total, stats.Unread)
		})
	}),
}

var (
	listFilter models.FilterCriteria
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List emails, newest first",
	Args:  cobra.NoArgs,
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		if err := st.FetchEmails(ctx, sess.UserID, false); err != nil {
			return err
		}
		emails := st.ApplyFilters(listFilter)
		if listLimit > 0 && len(emails) > listLimit {
			emails = emails[:listLimit]
		}
		return e.print(emails, func(w io.Writer) {
			printEmails(w, emails)
		})
	}),
}

// column widths for the list table, in terminal cells
const (
	idWidth      = 18
	classWidth   = 12
	senderWidth  = 28
	subjectWidth = 60
)

func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

func printEmails(w io.Writer, emails []models.Email) {
	if len(emails) == 0 {
		fmt.Fprintln(w, "No emails")
		return
	}
	for _, m := range emails {
		flag := " "
		if m.IsUnread() {
			flag = "*"
		}
		fmt.Fprintf(w, "%s %s %s %s %s %s\n",
			flag,
			cell(m.ID, idWidth),
			cell(string(m.ClassificationOrDefault()), classWidth),
			m.Date.Local().Format("2006-01-02 15:04"),
			cell(m.Sender, senderWidth),
			runewidth.Truncate(m.Subject, subjectWidth, "…"),
		)
	}
}

var classifyAll bool

var classifyCmd = &cobra.Command{
	Use:   "classify [email-id]",
	Short: "Classify one email, or every email with --all",
	Args: func(cmd *cobra.Command, args []string) error {
		if classifyAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		if classifyAll {
			res, err := st.FilterAllEmails(ctx, sess.UserID)
			if err != nil {
				return err
			}
			return e.print(res, func(w io.Writer) {
				for _, r := range res {
					fmt.Fprintf(w, "%s %s\n", cell(r.ID, idWidth), r.Classification)
				}
			})
		}

		cls, err := st.FilterEmail(ctx, args[0], sess.UserID)
		if err != nil {
			return err
		}
		res := models.ClassifiedEmail{ID: args[0], Classification: cls}
		return e.print(res, func(w io.Writer) {
			fmt.Fprintln(w, cls)
		})
	}),
}

var (
	summarizeThread bool
	summarizeMode   string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <id>",
	Short: "Summarize an email, or a thread with --thread",
	Args:  cobra.ExactArgs(1),
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		mode := models.ParseSummaryMode(summarizeMode)
		if summarizeMode != "" && string(mode) != summarizeMode {
			return fmt.Errorf("unknown summary mode %q (want short, detailed or bullet)", summarizeMode)
		}

		call := st.SummarizeEmail
		if summarizeThread {
			call = st.SummarizeThread
		}
		text, err := call(ctx, args[0], sess.UserID, mode)
		if err != nil {
			return err
		}
		out := map[string]string{"id": args[0], "mode": string(mode), "summary": text}
		return e.print(out, func(w io.Writer) {
			fmt.Fprintln(w, text)
		})
	}),
}

func init() {
	listCmd.Flags().StringVar(&listFilter.Classification, "classification", "", "only this classification")
	listCmd.Flags().StringVar(&listFilter.SearchText, "search", "", "substring of subject, sender or snippet")
	listCmd.Flags().StringVar((*string)(&listFilter.Priority), "priority", "", "high, medium or low")
	listCmd.Flags().BoolVar(&listFilter.UnreadOnly, "unread", false, "only unread emails")
	listCmd.Flags().BoolVar(&listFilter.HasAttachments, "attachments", false, "only emails with attachments")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "print at most n emails")

	classifyCmd.Flags().BoolVar(&classifyAll, "all", false, "classify every email of the mailbox")

	summarizeCmd.Flags().BoolVar(&summarizeThread, "thread", false, "treat the id as a thread id")
	summarizeCmd.Flags().StringVar(&summarizeMode, "mode", "", "short, detailed or bullet (default short)")

	rootCmd.AddCommand(syncCmd, listCmd, classifyCmd, summarizeCmd)
}
