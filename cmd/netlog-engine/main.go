package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	out        io.Writer
	errOut     io.Writer
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}
	cmd := &cobra.Command{
		Use:           "netlog-engine",
		Short:         "Network connection log analysis and anomaly explanation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to configuration file (default $NETLOG_CONFIG)")

	cmd.AddCommand(
		newServeCmd(a),
		newStatsCmd(a),
		newAnalyzeCmd(a),
	)
	return cmd
}
