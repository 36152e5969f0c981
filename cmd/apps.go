package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/procsniff/internal/proc"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List applications with open sockets",
	Long: `List local processes that own TCP or UDP sockets, grouped by process name.
The NAME column is accepted by "watch --app" and any PID by "watch --pid".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		return runApps(ctx, proc.NewSystemLister(), cmd.OutOrStdout())
	},
}

func runApps(ctx context.Context, lister proc.Lister, w io.Writer) error {
	records, err := lister.List(ctx)
	if err != nil {
		return err
	}

	apps := proc.Applications(records)
	if len(apps) == 0 {
		fmt.Fprintln(w, "no processes with open sockets found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPIDS\tSOCKETS\tLOCAL PORTS")
	for _, app := range apps {
		pids := make([]string, len(app.PIDs))
		for i, pid := range app.PIDs {
			pids[i] = strconv.Itoa(int(pid))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", app.Name, strings.Join(pids, ","), len(app.Sockets), localPorts(app))
	}
	return tw.Flush()
}

// localPorts lists up to five distinct local ports.
func localPorts(app proc.Application) string {
	var ports []int
	for _, s := range app.Sockets {
		if p := int(s.LocalPort); p != 0 && !slices.Contains(ports, p) {
			ports = append(ports, p)
		}
	}
	slices.Sort(ports)

	const shown = 5
	parts := make([]string, 0, shown+1)
	for i, p := range ports {
		if i == shown {
			parts = append(parts, fmt.Sprintf("+%d", len(ports)-shown))
			break
		}
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, ",")
}
