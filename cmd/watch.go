package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"firestige.xyz/procsniff/internal/capture"
	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/feed"
	"firestige.xyz/procsniff/internal/filter"
	"firestige.xyz/procsniff/internal/metrics"
	"firestige.xyz/procsniff/internal/monitor"
	"firestige.xyz/procsniff/internal/proc"
	"firestige.xyz/procsniff/internal/retriever"
)

var (
	watchPID     int32
	watchApp     string
	watchDevice  string
	watchFile    string
	watchRows    int
	watchRefresh time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Capture the traffic of one process or application",
	Long: `Select a process by pid or an application by name, capture on the configured
interface and print the newest matching packets every refresh interval.

Stop with Ctrl-C. A capture device failure ends the session with an error.

Examples:
  procsniff watch --pid 4242
  procsniff watch --app firefox --device eth0
  procsniff watch --app curl --file trace.pcapng`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := watchOptions{
			PID:     watchPID,
			App:     watchApp,
			Device:  watchDevice,
			File:    watchFile,
			Rows:    watchRows,
			Refresh: watchRefresh,
		}
		return runWatch(ctx, cfg, opts, proc.NewSystemLister(), capture.Open, cmd.OutOrStdout())
	},
}

func init() {
	watchCmd.Flags().Int32VarP(&watchPID, "pid", "p", 0, "process id to capture for")
	watchCmd.Flags().StringVarP(&watchApp, "app", "a", "", "application (process name) to capture for")
	watchCmd.Flags().StringVarP(&watchDevice, "device", "i", "", "capture interface (overrides capture.device)")
	watchCmd.Flags().StringVarP(&watchFile, "file", "r", "", "read frames from a pcap/pcapng file instead of an interface")
	watchCmd.Flags().IntVarP(&watchRows, "rows", "n", 0, "packets shown per refresh (overrides watch.rows)")
	watchCmd.Flags().DurationVar(&watchRefresh, "refresh", 0, "refresh interval (overrides watch.refresh)")
	watchCmd.MarkFlagsMutuallyExclusive("pid", "app")
	watchCmd.MarkFlagsOneRequired("pid", "app")
}

type watchOptions struct {
	PID     int32
	App     string
	Device  string
	File    string
	Rows    int
	Refresh time.Duration
}

func runWatch(ctx context.Context, c *config.Config, opts watchOptions, lister proc.Lister, open monitor.Opener, w io.Writer) error {
	capCfg := c.Capture
	if opts.Device != "" {
		capCfg.Device = opts.Device
	}
	if opts.File != "" {
		capCfg.Type = config.CaptureTypeFile
		capCfg.File = opts.File
	}
	rows := c.Watch.Rows
	if opts.Rows > 0 {
		rows = opts.Rows
	}
	refresh := c.Watch.Refresh
	if opts.Refresh > 0 {
		refresh = opts.Refresh
	}

	target, err := resolveTarget(ctx, lister, opts)
	if err != nil {
		return err
	}

	mgr := monitor.NewManagerWithOpener(capCfg, open)
	defer mgr.Close()

	if c.Metrics.Enabled {
		ms := metrics.NewServer(c.Metrics.Listen, c.Metrics.Path)
		if err := ms.Start(ctx); err != nil {
			return err
		}
		defer ms.Stop(context.Background())
	}
	if c.Feed.Enabled {
		fs := feed.NewServer(c.Feed, mgr.Current)
		if err := fs.Start(ctx); err != nil {
			return err
		}
		defer fs.Stop(context.Background())
	}

	r, err := mgr.Select(target)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printPackets(w, r, rows)
		case <-r.Done():
			printPackets(w, r, rows)
			if err := r.Err(); err != nil {
				return fmt.Errorf("capture on %s failed: %w", r.Device(), err)
			}
			return nil
		case <-ctx.Done():
			logrus.Info("interrupted, stopping capture")
			mgr.Close()
			printPackets(w, r, rows)
			return nil
		}
	}
}

func resolveTarget(ctx context.Context, lister proc.Lister, opts watchOptions) (filter.Target, error) {
	if (opts.PID != 0) == (opts.App != "") {
		return filter.Target{}, errors.New("exactly one of --pid or --app is required")
	}

	records, err := lister.List(ctx)
	if err != nil {
		return filter.Target{}, err
	}
	if opts.PID != 0 {
		return proc.FindPID(records, opts.PID)
	}
	return proc.FindApplication(records, opts.App)
}

// printPackets writes a status line and the newest rows packets.
func printPackets(w io.Writer, r *retriever.Retriever, rows int) {
	st := r.Status()

	state := string(st.State)
	switch {
	case st.Failed:
		state = "FAILED: " + st.Error
	case st.Exhausted:
		state = "finished (end of file)"
	}
	fmt.Fprintf(w, "\n%s on %s  state=%s  packets=%d  frames=%d  decode_errors=%d  filtered=%d\n",
		st.Target, st.Device, state, st.Packets, st.Stats.Received, st.Stats.DecodeErrors, st.Stats.FilterMisses)

	if st.Packets == 0 {
		if !st.Failed {
			fmt.Fprintln(w, "no matching packets yet")
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tPROTO\tSOURCE\tDESTINATION\tFLAGS\tLEN")
	n := 0
	for seq, pkt := range r.Packets().Snapshot().Since(0) {
		if n == rows {
			break
		}
		v := feed.NewView(seq, pkt)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			v.Seq, v.Timestamp.Format("15:04:05.000000"), v.Protocol,
			v.Endpoint(true), v.Endpoint(false), v.Flags, v.PayloadLen)
		n++
	}
	tw.Flush()
}
