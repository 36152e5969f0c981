package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/procsniff/internal/capture/pcap"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture interfaces",
	Long: `List the interfaces libpcap can capture on. Use a name from the first column
as capture.device (or PROCSNIFF_CAPTURE_DEVICE).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDevices(pcap.ListDevices, cmd.OutOrStdout())
	},
}

func runDevices(list func() ([]pcap.Device, error), w io.Writer) error {
	devs, err := list()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Fprintln(w, "no capture interfaces found (insufficient privileges?)")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESSES\tDESCRIPTION")
	for _, d := range devs {
		name := d.Name
		if d.Loopback {
			name += " (loopback)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, strings.Join(d.Addresses, ","), d.Description)
	}
	return tw.Flush()
}
