package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/simview/simview/internal/bundle"
	"github.com/simview/simview/internal/config"
	"github.com/simview/simview/internal/db"
	"github.com/simview/simview/internal/state"
	"github.com/simview/simview/internal/workspace"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or clear persisted simulator state",
}

// openStore opens the state store for the configured workspace.
func openStore() (*state.Store, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	ws, err := workspace.Active(cfg, bundle.New(cfg.BundleDir))
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "simview.db"))
	if err != nil {
		return nil, nil, err
	}

	return state.NewStore(database, ws.Root), func() { database.Close() }, nil
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted simulator state blob and recent serial output",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openStore()
		if err != nil {
			return err
		}
		defer closeDB()
		ctx := cmd.Context()

		blob, err := store.GetSlot(ctx, state.SlotSimState)
		if err != nil {
			return err
		}
		if blob == nil {
			fmt.Println("simstate: (unset)")
		} else {
			fmt.Printf("simstate: %s\n", blob)
		}

		lines, err := store.RecentSerial(ctx, 20)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			fmt.Println("serial: (empty)")
			return nil
		}
		fmt.Printf("serial (%d most recent):\n", len(lines))
		for _, l := range lines {
			fmt.Printf("  [%s] %s\n", l.LoggedAt.Format("15:04:05"), l.Line)
		}
		return nil
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the persisted simulator state and serial history",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openStore()
		if err != nil {
			return err
		}
		defer closeDB()
		ctx := cmd.Context()

		if err := store.DeleteSlot(ctx, state.SlotSimState); err != nil {
			return err
		}
		if err := store.ClearSerial(ctx); err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "Cleared simulator state and serial history.")
		return nil
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)
	rootCmd.AddCommand(stateCmd)
}
