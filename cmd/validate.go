package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/procsniff/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print the effective values",
	Long: `Load the configuration file (if any), apply PROCSNIFF_* environment overrides
and defaults, validate it and print the result as YAML.

Examples:
  procsniff validate
  procsniff validate -c procsniff.yml
  PROCSNIFF_CAPTURE_TYPE=afpacket procsniff validate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cfg, cmd.OutOrStdout())
	},
}

func runValidate(c *config.Config, w io.Writer) error {
	out, err := config.Dump(c)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	_, err = w.Write(out)
	return err
}
