package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"maildash/models"
	"maildash/store"
)

var draftReq models.DraftRequest

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Generate an email draft, or a reply with --reply-to",
	Args:  cobra.NoArgs,
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		req := draftReq
		req.Recipient = strings.TrimSpace(req.Recipient)
		req.Context = strings.TrimSpace(req.Context)

		var (
			text string
			err  error
		)
		if req.ReplyTo != "" {
			// recipient and subject default to the original email
			if err := st.FetchEmails(ctx, sess.UserID, false); err != nil {
				return err
			}
			req = st.ResolveReply(req)
			text, err = st.GenerateReplyDraft(ctx, sess.UserID, req)
		} else {
			if req.Recipient == "" || req.Context == "" {
				return errors.New("--to and --context are required")
			}
			text, err = st.GenerateDraftEmail(ctx, sess.UserID, req)
		}
		if err != nil {
			return err
		}

		draft := models.Draft{Request: req, Text: text, Reply: req.ReplyTo != ""}
		return e.print(draft, func(w io.Writer) {
			if draft.Request.Subject != "" {
				fmt.Fprintf(w, "To: %s\nSubject: %s\n\n", draft.Request.Recipient, draft.Request.Subject)
			}
			fmt.Fprintln(w, text)
		})
	}),
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the semantic search index",
	Args:  cobra.NoArgs,
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		res, err := st.IndexSearch(ctx, sess.UserID)
		if err != nil {
			return err
		}
		return e.print(res, func(w io.Writer) {
			fmt.Fprintf(w, "%s: %d emails indexed\n", res.Status, res.Indexed)
		})
	}),
}

var searchK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Ask a question over the indexed mailbox",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		res, err := st.Search(ctx, sess.UserID, strings.Join(args, " "), searchK)
		if err != nil {
			return err
		}
		return e.print(res, func(w io.Writer) {
			fmt.Fprintln(w, res.Answer)
			if len(res.Matches) > 0 {
				fmt.Fprintln(w)
			}
			for _, m := range res.Matches {
				fmt.Fprintf(w, "  %.3f  %s  (thread %s)\n", m.Score, m.EmailID, m.ThreadID)
			}
		})
	}),
}

var agentCmd = &cobra.Command{
	Use:   "agent <email-id>",
	Short: "Run the agent on one email",
	Args:  cobra.ExactArgs(1),
	RunE: runWithSession(func(ctx context.Context, e *environment, sess models.Session, st *store.Store, args []string) error {
		res, err := st.RunAgent(ctx, args[0], sess.UserID)
		if err != nil {
			return err
		}
		return e.print(res, func(w io.Writer) {
			for i, step := range res.Steps {
				fmt.Fprintf(w, "%d. %s\n", i+1, step)
			}
			if res.Output != "" {
				fmt.Fprintln(w, res.Output)
			}
			if res.Error != "" {
				fmt.Fprintf(w, "error: %s\n", res.Error)
			}
		})
	}),
}

func init() {
	draftCmd.Flags().StringVar(&draftReq.Recipient, "to", "", "recipient address")
	draftCmd.Flags().StringVar(&draftReq.Subject, "subject", "", "subject line")
	draftCmd.Flags().StringVar(&draftReq.Context, "context", "", "what the email should say")
	draftCmd.Flags().StringVar(&draftReq.ReplyTo, "reply-to", "", "id of the email to reply to")

	searchCmd.Flags().IntVarP(&searchK, "top", "k", 0, "number of matches (default from config)")

	rootCmd.AddCommand(draftCmd, indexCmd, searchCmd, agentCmd)
}
