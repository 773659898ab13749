package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var linesCmd = &cobra.Command{
	Use:   "lines",
	Short: "Lists lines found in the frequency table",
	Args:  cobra.NoArgs,
	RunE:  lines,
}

func init() {
	rootCmd.AddCommand(linesCmd)
}

func lines(cmd *cobra.Command, args []string) error {
	return runLines(cmd.Context(), os.Stdout)
}

func runLines(ctx context.Context, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	loader, err := newLoader()
	if err != nil {
		return err
	}

	lines, err := loader.Lines(ctx)
	if err != nil {
		return err
	}

	for _, line := range lines {
		fmt.Fprintln(w, line)
	}

	return nil
}
