package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/robalobadob/portfolio/apps/go-server/internal/config"
	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
	"github.com/robalobadob/portfolio/apps/go-server/internal/storage"
	"github.com/robalobadob/portfolio/apps/go-server/internal/users"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect the demo user store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := storage.OpenAndMigrate(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			list, err := users.New(users.NewSQLStore(db), kv.NewMemory(), uuid.NewString).ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCREATED")
			for _, u := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	})
	return cmd
}
