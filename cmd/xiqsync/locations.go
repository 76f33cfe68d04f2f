package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshp123/xiqsync/internal/ui"
	"github.com/joshp123/xiqsync/internal/xiq"
)

var locationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Sync or search the location tree",
}

var locationsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the location tree and store it in Redis",
	RunE:  runLocationsSync,
}

var locationsFindCmd = &cobra.Command{
	Use:   "find NAME",
	Short: "Find a location by unique name or name in the stored tree",
	Args:  cobra.ExactArgs(1),
	RunE:  runLocationsFind,
}

func init() {
	rootCmd.AddCommand(locationsCmd)
	locationsCmd.AddCommand(locationsSyncCmd)
	locationsCmd.AddCommand(locationsFindCmd)
}

func runLocationsSync(cmd *cobra.Command, _ []string) error {
	authenticator, err := newAuthenticator(cfg)
	if err != nil {
		return err
	}
	cred, err := authenticator.Credential(cmd.Context(), cfg.ForceLogin)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cred.Token)
	if err != nil {
		return err
	}
	raw, err := client.FetchLocationsTree(cmd.Context())
	if err != nil {
		return err
	}

	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SaveLocations(cmd.Context(), raw); err != nil {
		return err
	}
	ui.Success("Location tree stored")
	return nil
}

func runLocationsFind(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	raw, err := st.LoadLocations(cmd.Context())
	if err != nil {
		return fmt.Errorf("load location tree (run 'xiqsync locations sync' first): %w", err)
	}
	nodes, err := xiq.ParseLocations(raw)
	if err != nil {
		return err
	}
	loc, ok := xiq.FindLocation(nodes, args[0])
	if !ok {
		ui.Warn(fmt.Sprintf("no location named %q", args[0]))
		return &exitError{code: 1}
	}
	ui.WriteFields(cmd.OutOrStdout(), loc.Name, []ui.Field{
		{Key: "id", Value: strconv.FormatInt(loc.ID, 10)},
		{Key: "unique name", Value: loc.UniqueName},
		{Key: "type", Value: loc.Type},
		{Key: "children", Value: strconv.Itoa(len(loc.Children))},
	})
	return nil
}
