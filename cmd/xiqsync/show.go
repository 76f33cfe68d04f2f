package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshp123/xiqsync/internal/store"
	"github.com/joshp123/xiqsync/internal/ui"
)

var (
	findHostname string
	findExact    bool
)

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print one stored access point",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find stored access points by hostname",
	RunE:  runFind,
}

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().StringVar(&findHostname, "hostname", "", "hostname to search for")
	findCmd.Flags().BoolVar(&findExact, "exact", false, "require an exact hostname match")
	_ = findCmd.MarkFlagRequired("hostname")
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid device id %q", args[0])
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	printRecord(cmd, rec)
	return nil
}

func runFind(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.FindByHostname(cmd.Context(), findHostname, findExact)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.Warn(fmt.Sprintf("no access point matches %q", findHostname))
		return &exitError{code: 1}
	}
	for _, rec := range records {
		printRecord(cmd, rec)
	}
	return nil
}

func printRecord(cmd *cobra.Command, rec store.Record) {
	d := rec.Device
	fields := []ui.Field{
		{Key: "id", Value: strconv.FormatInt(d.ID, 10)},
		{Key: "hostname", Value: deref(d.Hostname)},
		{Key: "serial", Value: deref(d.SerialNumber)},
		{Key: "product", Value: deref(d.ProductType)},
		{Key: "connected", Value: strconv.FormatBool(d.Connected)},
	}
	if d.LocationID != nil {
		fields = append(fields, ui.Field{Key: "location", Value: strconv.FormatInt(*d.LocationID, 10)})
	}
	fields = append(fields,
		ui.Field{Key: "ssids", Value: strings.Join(rec.SSIDs, ", ")},
		ui.Field{Key: "expires in", Value: rec.TTL.Round(time.Second).String()},
	)
	ui.WriteFields(cmd.OutOrStdout(), d.Name(), fields)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
