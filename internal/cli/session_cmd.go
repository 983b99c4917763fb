package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/rangecoach/internal/config"
	"github.com/soyeahso/rangecoach/internal/store"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage stored coaching sessions",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionShowCmd())
	cmd.AddCommand(newSessionDeleteCmd())

	return cmd
}

// openSessionStore loads config and opens the session store the same way
// serve does, so CLI inspection sees exactly what the server sees.
func openSessionStore() (*store.SessionStore, error) {
	cfg, err := config.Load(paths.Config, paths)
	if err != nil {
		return nil, err
	}
	return store.NewSessionStore(
		cfg.Sessions.Dir,
		cfg.Sessions.MaxEvents,
		time.Duration(cfg.Sessions.LockTimeoutSeconds)*time.Second,
		log,
	)
}

func newSessionListCmd() *cobra.Command {
	var (
		tenantID string
		userID   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := openSessionStore()
			if err != nil {
				return err
			}

			summaries, err := sessions.List(tenantID, userID, limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			for _, s := range summaries {
				fmt.Printf("%s  tenant=%s user=%s phase=%s updated=%s\n",
					s.SessionID, s.TenantID, s.UserID, s.CurrentPhase,
					s.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "filter by tenant id")
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sessions to list (0 = all)")

	return cmd
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := openSessionStore()
			if err != nil {
				return err
			}

			sess, err := sessions.Get(args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := openSessionStore()
			if err != nil {
				return err
			}

			if err := sessions.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}
