package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"arksync/internal/backup"
	"arksync/internal/blob"
	"arksync/internal/enrichment"
	"arksync/internal/transport"
	"arksync/pkg/domain"
)

func (c *cli) backupCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export the local cache to blob storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := blob.Open(cmd.Context(), c.cfg.Blob)
			if err != nil {
				return err
			}
			if list {
				infos, err := backup.List(cmd.Context(), store)
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", info.Key, info.Size)
				}
				return nil
			}
			return c.withApp(cmd, func(a *app) error {
				info, err := backup.Export(cmd.Context(), a.rec, store)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), info.Key)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list stored backups, newest first")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [key]",
		Short: "Replace the local cache with a backup (newest when no key is given)",
		Long: `restore overwrites every collection in the backup locally. Nothing is
pushed; run push afterwards to publish the restored records.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := blob.Open(cmd.Context(), c.cfg.Blob)
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return c.withApp(cmd, func(a *app) error {
				doc, err := backup.Restore(cmd.Context(), a.rec, store, key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored backup from %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
				return nil
			})
		},
	}
}

var errEnrichmentDisabled = errors.New("enrichment is disabled")

func (c *cli) enrichCmd() *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "enrich <species-id>",
		Short: "Fill missing species metadata from the enrichment provider and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Enrichment.BaseURL == "" {
				return fmt.Errorf("%w: enrichment.base_url is not set", errEnrichmentDisabled)
			}
			return c.withApp(cmd, func(a *app) error {
				if !a.rec.Settings().EnrichmentActive {
					return fmt.Errorf("%w in system settings", errEnrichmentDisabled)
				}
				all := a.rec.Snapshot().Species
				idx := -1
				for i, s := range all {
					if s.ID == args[0] && !s.Deleted {
						idx = i
						break
					}
				}
				if idx < 0 {
					return fmt.Errorf("species %s not found", args[0])
				}
				loc := location
				if loc == "" {
					loc = projectLocation(a.rec.Projects(), all[idx].ProjectID)
				}
				provider := enrichment.NewHTTPProvider(transport.New(c.cfg.Enrichment.BaseURL,
					transport.WithLogger(a.logger),
					transport.WithMetrics(a.metrics),
				))
				all[idx] = enrichment.New(provider, c.cfg.Enrichment.Timeout, a.logger).Enrich(cmd.Context(), all[idx], loc)
				if err := a.rec.SaveSpecies(all, false); err != nil {
					return err
				}
				if err := a.drain(); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), all[idx])
			})
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "location hint (default: the species' project location)")
	return cmd
}

func projectLocation(projects []domain.Project, id string) string {
	for _, p := range projects {
		if p.ID == id {
			return p.Location
		}
	}
	return ""
}
