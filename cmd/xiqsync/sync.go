package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshp123/xiqsync/internal/config"
	"github.com/joshp123/xiqsync/internal/notify"
	"github.com/joshp123/xiqsync/internal/store"
	"github.com/joshp123/xiqsync/internal/syncer"
	"github.com/joshp123/xiqsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync: login if needed, fetch access points and SSIDs, write Redis",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	pipeline, st, cleanup, err := buildSyncer(cmd, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer st.Close()

	fmt.Println(ui.Bold("Syncing access points from " + cfg.Server))
	result, err := pipeline.Run(cmd.Context())
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

// buildSyncer wires credentials, client factory, store and notifier.
func buildSyncer(cmd *cobra.Command, cfg *config.Config) (*syncer.Syncer, *store.Store, func(), error) {
	authenticator, err := newAuthenticator(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	factory := func(token string) (syncer.Fetcher, error) {
		client, err := newClient(cfg, token)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	pipeline := syncer.New(syncer.Options{
		PageSize:   cfg.PageSize,
		ForceLogin: cfg.ForceLogin,
		Locations:  cfg.Locations.Enabled,
	}, authenticator, factory, st)

	cleanup := func() {}
	if cfg.MQTT.Enabled() {
		publisher, err := notify.Dial(cfg.MQTT)
		if err != nil {
			ui.Warn(fmt.Sprintf("status publishing disabled: %v", err))
		} else {
			pipeline.WithNotifier(publisher)
			cleanup = publisher.Close
		}
	}
	return pipeline, st, cleanup, nil
}

func printResult(r syncer.Result) {
	ui.Success(fmt.Sprintf("Stored %d access points (%d with SSIDs) in %s",
		r.Stored, r.SSIDDevices, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))
	if r.Relogin {
		fmt.Println(ui.Hint("stored token was rejected; logged in again"))
	}
}
