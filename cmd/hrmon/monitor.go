package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/hrmon/internal/bledb"
	"github.com/srg/hrmon/internal/device"
	"github.com/srg/hrmon/internal/heartrate"
	"github.com/srg/hrmon/internal/session"
	"github.com/srg/hrmon/scanner"
)

type monitorFlags struct {
	first       bool
	scanTimeout time.Duration
	samples     int
	rr          bool
}

func newMonitorCmd() *cobra.Command {
	flags := &monitorFlags{}

	cmd := &cobra.Command{
		Use:   "monitor [address]",
		Short: "Stream heart rate from a BLE sensor",
		Long: `Scan until the sensor is seen, connect to it, enable heart rate
notifications and print every decoded sample until Ctrl+C.

With --first the address may be omitted and the first device advertising
the heart rate service (180d) is used.`,
		Example: `  hrmon monitor AA:BB:CC:DD:EE:FF
  hrmon monitor --first --rr`,
		Args: func(cmd *cobra.Command, args []string) error {
			if flags.first {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			address := ""
			if len(args) > 0 {
				address = args[0]
			}
			return runMonitor(cmd, address, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.first, "first", false, "Use the first device advertising the heart rate service")
	cmd.Flags().DurationVar(&flags.scanTimeout, "scan-timeout", 10*time.Second, "How long to look for the device")
	cmd.Flags().IntVarP(&flags.samples, "samples", "n", 0, "Stop after this many samples (0 for unlimited)")
	cmd.Flags().BoolVar(&flags.rr, "rr", false, "Print RR intervals")

	return cmd
}

func runMonitor(cmd *cobra.Command, address string, flags *monitorFlags) error {
	if flags.scanTimeout <= 0 {
		return fmt.Errorf("invalid scan timeout %s: must be positive", flags.scanTimeout)
	}
	if flags.samples < 0 {
		return fmt.Errorf("invalid sample count %d: must not be negative", flags.samples)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd.SilenceUsage = true

	opts := &scanner.ScanOptions{
		Duration:        flags.scanTimeout,
		DuplicateFilter: a.cfg.DuplicateFilter,
	}
	if address != "" {
		opts.AllowList = []string{address}
	} else {
		opts.ServiceUUIDs = []string{bledb.HeartRateService}
	}

	ctx, cancel := interruptContext(cmd.Context())
	defer cancel()

	// subscribe before scanning so the first discovery is never missed
	sub := a.monitor.Subscribe(0)
	defer sub.Close()

	if err := a.monitor.RequestScanWithOptions(opts); err != nil {
		return err
	}

	progress := NewProgressPrinter(cmd.ErrOrStderr(), "Looking for heart rate sensor", "scanning")
	progress.Start()
	defer progress.Stop()

	out := cmd.OutOrStdout()
	stream := &samplePrinter{out: out, rr: flags.rr}
	connecting := false
	interrupted := false

	for {
		select {
		case <-ctx.Done():
			if interrupted {
				continue
			}
			interrupted = true
			a.logger.Debug("Interrupted, disconnecting")
			if !connecting {
				return ctx.Err()
			}
			a.monitor.RequestDisconnect()

		case snap, ok := <-sub.C():
			if !ok {
				return errors.New("session state closed")
			}

			if !connecting {
				target, found := pickTarget(snap, address)
				switch {
				case found:
					connecting = true
					progress.SetPhase("connecting to " + target.DisplayName())
					if err := a.monitor.RequestConnect(target.Address); err != nil {
						return err
					}
				case !snap.Scanning && snap.ScanErr != nil:
					return snap.ScanErr
				case !snap.Scanning && snap.Version > 1:
					return notFound(address)
				}
				continue
			}

			// snapshots of the scan that preceded the session carry no connection data
			if snap.Connection.Peripheral == nil {
				continue
			}

			conn := snap.Connection
			switch conn.State {
			case device.StateConnecting, device.StateServiceDiscovery, device.StateEnablingNotifications:
				progress.SetPhase(strings.ReplaceAll(conn.State.String(), "_", " "))
			case device.StateStreaming:
				progress.Stop()
				stream.header(*conn.Peripheral)
				stream.print(snap.Series)
				if flags.samples > 0 && stream.count >= flags.samples && !interrupted {
					interrupted = true
					a.monitor.RequestDisconnect()
				}
			case device.StateDisconnected, device.StateFailed:
				progress.Stop()
				stream.print(snap.Series)
				a.logger.WithFields(logrus.Fields{
					"state":   conn.State,
					"samples": stream.count,
				}).Info("Heart rate session ended")
				if conn.Err != nil {
					return conn.Err
				}
				return nil
			}
		}
	}
}

// pickTarget returns the device the monitor should connect to.
func pickTarget(snap *session.Snapshot, address string) (device.PeripheralHandle, bool) {
	for _, p := range snap.Devices {
		if address == "" {
			if p.Advertises(bledb.HeartRateService) {
				return p, true
			}
			continue
		}
		if strings.EqualFold(p.Address, address) {
			return p, true
		}
	}
	return device.PeripheralHandle{}, false
}

func notFound(address string) error {
	if address == "" {
		return &device.NotFoundError{Resource: "peripheral", UUIDs: []string{"advertising " + bledb.HeartRateService}}
	}
	return &device.NotFoundError{Resource: "peripheral", UUIDs: []string{address}}
}

// samplePrinter prints each sample of the series once.
type samplePrinter struct {
	out     io.Writer
	rr      bool
	printed bool
	lastSeq uint64
	count   int
}

func (p *samplePrinter) header(peripheral device.PeripheralHandle) {
	if p.printed {
		return
	}
	p.printed = true
	fmt.Fprintf(p.out, "Streaming heart rate from %s (%s)\n", peripheral.DisplayName(), peripheral.Address)
}

func (p *samplePrinter) print(series []session.Sample) {
	bpm := color.New(color.FgRed, color.Bold)
	for _, s := range series {
		if s.Seq <= p.lastSeq {
			continue
		}
		p.lastSeq = s.Seq
		p.count++

		line := fmt.Sprintf("%s  #%-5d %s", s.Timestamp.Format("15:04:05.000"), s.Seq, bpm.Sprintf("%3d bpm", s.BPM))
		if s.Contact != heartrate.ContactUnsupported {
			line += "  contact=" + s.Contact.String()
		}
		if s.EnergyExpended != nil {
			line += fmt.Sprintf("  energy=%dkJ", *s.EnergyExpended)
		}
		if p.rr && len(s.RR) > 0 {
			rr := make([]string, len(s.RR))
			for i, d := range s.RR {
				rr[i] = fmt.Sprintf("%dms", d.Milliseconds())
			}
			line += "  rr=" + strings.Join(rr, ",")
		}
		fmt.Fprintln(p.out, line)
	}
}
