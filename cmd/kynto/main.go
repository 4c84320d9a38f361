// Command kynto is a terminal consumer of the Kynto API: it streams
// generated roadmaps to stdout and manages saved plans.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"kynto-backend/client"

	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kynto",
		Short:         "Generate AI roadmaps for any goal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("KYNTO_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Kynto API base URL")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newPlansCmd())

	return root
}

func newClient() (*client.Client, error) {
	statePath, err := client.DefaultStatePath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state path: %w", err)
	}
	return client.New(serverURL, client.NewFileStore(statePath)), nil
}

// streamCallbacks prints status lines to stderr and roadmap text to
// stdout as it arrives
func streamCallbacks() client.Callbacks {
	printed := 0
	return client.Callbacks{
		OnStatus: func(status string) {
			fmt.Fprintln(os.Stderr, status)
		},
		OnProgress: func(accumulated string) {
			fmt.Print(accumulated[printed:])
			printed = len(accumulated)
		},
	}
}

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <goal>",
		Short: "Generate a phased roadmap for a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			goal := strings.Join(args, " ")
			_, err = c.Generate(cmd.Context(), goal, streamCallbacks())
			if err != nil {
				return reportGenerateError(err)
			}
			fmt.Println()

			if c.Authenticated() {
				refreshPlans(cmd.Context(), c)
			}
			return nil
		},
	}
}

func reportGenerateError(err error) error {
	var interrupted *client.StreamInterruptedError
	switch {
	case errors.Is(err, client.ErrSignUpRequired):
		return errors.New("free credit used - run 'kynto login --token <token>' to continue; your goal will be resubmitted")
	case errors.Is(err, client.ErrRateLimited):
		return errors.New("Kynto is highly active right now, please try again in a minute")
	case errors.As(err, &interrupted):
		// Partial text has already been printed; keep it on screen
		fmt.Fprintln(os.Stderr, "\nStream interrupted. The roadmap above is incomplete.")
		return interrupted.Err
	default:
		return err
	}
}

func refreshPlans(ctx context.Context, c *client.Client) {
	plans, err := c.ListPlans(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Warning: could not refresh saved plans:", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Saved to your plans (%d total).\n", len(plans))
}

func newLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an access token; resubmits a gated goal if one is pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}

			c, err := newClient()
			if err != nil {
				return err
			}

			_, resubmitted, err := c.Login(cmd.Context(), token, streamCallbacks())
			if err != nil {
				return reportGenerateError(err)
			}

			if resubmitted {
				fmt.Println()
				refreshPlans(cmd.Context(), c)
			} else {
				fmt.Fprintln(os.Stderr, "Signed in.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token issued by the identity provider")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Signed out.")
			return nil
		},
	}
}

func newPlansCmd() *cobra.Command {
	plans := &cobra.Command{
		Use:   "plans",
		Short: "Manage saved roadmaps",
	}

	plans.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved roadmaps, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			saved, err := c.ListPlans(cmd.Context())
			if err != nil {
				return err
			}
			if len(saved) == 0 {
				fmt.Fprintln(os.Stderr, "No saved plans yet.")
				return nil
			}

			for _, p := range saved {
				fmt.Printf("%s  %s  %s\n", p.ID, p.CreatedAt.Local().Format("2006-01-02 15:04"), p.Title)
			}
			return nil
		},
	})

	plans.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved roadmap",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.DeletePlan(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Deleted.")
			return nil
		},
	})

	return plans
}
