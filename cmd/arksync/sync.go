package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"arksync/internal/credential"
	"arksync/internal/syncer"
	"arksync/pkg/domain"
)

func (c *cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password-hash>",
		Short: "Authenticate against the remote service and store the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app) error {
				sess, err := credential.NewHTTPService(a.remote).Login(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if err := a.rec.SaveSession(sess); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", sess.User.Email)
				return nil
			})
		},
	}
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				return a.rec.ClearSession()
			})
		},
	}
}

type pullOutput struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Failure string              `json:"failure,omitempty"`
	Applied []domain.Collection `json:"applied"`
}

func (c *cli) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Overwrite the local cache with the remote snapshot",
		Long: `pull fetches every collection in one request and overwrites the local
copy collection by collection. Collections the remote does not return are
left untouched. The session and the selected project are never replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				res, err := a.sync.Pull(cmd.Context())
				out := pullOutput{Success: res.Success, Message: res.Message, Failure: string(res.Failure), Applied: res.Applied}
				if out.Applied == nil {
					out.Applied = []domain.Collection{}
				}
				if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
					return perr
				}
				if err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("pull failed (%s): %s", res.Failure, res.Message)
				}
				return nil
			})
		},
	}
}

func (c *cli) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upsert every local collection to the remote service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				if err := a.sync.PushAll(cmd.Context(), a.rec.Snapshot()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "push complete")
				return nil
			})
		},
	}
}

type statusOutput struct {
	User           string         `json:"user,omitempty"`
	SessionValid   bool           `json:"sessionValid"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Organization   string         `json:"organization,omitempty"`
	CurrentProject string         `json:"currentProject,omitempty"`
	Counts         map[string]int `json:"counts"`
	Sync           syncer.Status  `json:"sync"`
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and local record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				sess := a.rec.Session()
				out := statusOutput{
					User:           sess.User.Email,
					SessionValid:   sess.Valid(time.Now()),
					CurrentProject: a.rec.CurrentProject(),
					Counts: map[string]int{
						string(domain.CollectionPartnerOrganizations): len(a.rec.PartnerOrganizations()),
						string(domain.CollectionUsers):                len(a.rec.Users()),
						string(domain.CollectionProjects):             len(a.rec.Projects()),
						string(domain.CollectionSpecies):              len(a.rec.Species()),
						string(domain.CollectionIndividuals):          len(a.rec.Individuals()),
						string(domain.CollectionBreedingEvents):       len(a.rec.BreedingEvents()),
						string(domain.CollectionLoans):                len(a.rec.Loans()),
						string(domain.CollectionPartnerships):         len(a.rec.Partnerships()),
					},
					Sync: a.sync.Status(),
				}
				if !sess.ExpiresAt.IsZero() {
					out.ExpiresAt = &sess.ExpiresAt
				}
				if org := a.rec.Organization(); org != nil {
					out.Organization = org.Name
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}
