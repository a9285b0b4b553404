package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/scanner"
)

type scanFlags struct {
	duration     time.Duration
	format       string
	services     []string
	allowList    []string
	blockList    []string
	noDuplicates bool
}

func newScanCmd() *cobra.Command {
	flags := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for BLE devices",
		Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

This command opens a single discovery window and lists the discovered devices,
including their names, addresses, RSSI values, and advertised services.
Use --services 180d to list heart rate sensors only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, flags)
		},
	}

	cmd.Flags().DurationVarP(&flags.duration, "duration", "d", 0, "Scan duration (default from config, 5s)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "Output format (table, json)")
	cmd.Flags().StringSliceVarP(&flags.services, "services", "s", nil, "Filter by service UUIDs")
	cmd.Flags().StringSliceVar(&flags.allowList, "allow", nil, "Only show devices with these addresses")
	cmd.Flags().StringSliceVar(&flags.blockList, "block", nil, "Hide devices with these addresses")
	cmd.Flags().BoolVar(&flags.noDuplicates, "no-duplicates", true, "Filter duplicate advertisements")

	return cmd
}

func runScan(cmd *cobra.Command, flags *scanFlags) error {
	if flags.duration < 0 {
		return fmt.Errorf("invalid duration %s: must not be negative", flags.duration)
	}

	var serviceUUIDs []string
	if len(flags.services) > 0 {
		var err error
		serviceUUIDs, err = device.ValidateUUID(flags.services...)
		if err != nil {
			return fmt.Errorf("invalid service UUID: %w", err)
		}
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	format := a.cfg.OutputFormat
	if flags.format != "" {
		format = flags.format
	}
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := &scanner.ScanOptions{
		Duration:        a.cfg.ScanDuration,
		DuplicateFilter: a.cfg.DuplicateFilter,
		ServiceUUIDs:    serviceUUIDs,
		AllowList:       flags.allowList,
		BlockList:       flags.blockList,
	}
	if flags.duration > 0 {
		opts.Duration = flags.duration
	}
	if cmd.Flags().Changed("no-duplicates") {
		opts.DuplicateFilter = flags.noDuplicates
	}

	ctx, cancel := interruptContext(cmd.Context())
	defer cancel()

	progress := NewCountdownProgressPrinter(cmd.ErrOrStderr(), "Scanning for BLE devices", "scanning", opts.Duration)
	progress.Start()

	if err := a.monitor.RequestScanWithOptions(opts); err != nil {
		progress.Stop()
		return err
	}

	if err := a.monitor.WaitScan(ctx); err != nil && ctx.Err() != nil {
		a.logger.Debug("Scan interrupted, keeping discovered devices")
		a.monitor.StopScan()
		_ = a.monitor.WaitScan(context.Background())
	}
	progress.Stop()

	snap := a.monitor.Snapshot()
	if snap.ScanErr != nil {
		a.logger.WithError(snap.ScanErr).Error("scan failed")
		return snap.ScanErr
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		return displayDevicesJSON(out, snap.Devices)
	}
	return displayDevicesTable(out, snap.Devices)
}

func displayDevicesTable(out io.Writer, devices []device.PeripheralHandle) error {
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSERVICES\tLAST SEEN")
	fmt.Fprintln(w, strings.Repeat("-", 80))

	for _, p := range devices {
		name := p.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}

		services := strings.Join(p.AdvertisedServices, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}

		lastSeen := time.Since(p.LastSeen).Truncate(time.Second)

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s ago\n",
			name, p.Address, p.RSSI, services, lastSeen)
	}

	return w.Flush()
}

func displayDevicesJSON(out io.Writer, devices []device.PeripheralHandle) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(devices)
}
