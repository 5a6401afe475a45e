package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cyberbalsa/gci-goad/internal/inventory"
)

// NewTargetsCmd creates the targets command
func NewTargetsCmd(app *App) *cobra.Command {
	var inventoryPath string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the deployment targets read from the inventory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("inventory") {
				cfg.Inventory = inventoryPath
			}

			targets, err := inventory.File{Path: cfg.Inventory, Group: cfg.InventoryGroup}.ListTargets()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(targets) == 0 {
				fmt.Fprintf(out, "No targets in %s\n", cfg.Inventory)
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GROUP\tNAME\tADDRESS")
			for _, t := range targets {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.GroupID, t.Name, t.Address)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d target(s)\n", len(targets))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inventoryPath, "inventory", "i", "", "Inventory file (INI or YAML)")

	return cmd
}
