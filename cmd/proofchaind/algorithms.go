package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahwlsqja/proofchain/consensus"
)

func newAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List the available algorithms and their characteristics",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, kind := range consensus.DescribeAll() {
				fmt.Fprintf(out, "%s (%s)\n", kind.Name(), kind.Key())
				fmt.Fprintf(out, "  %s\n", kind.Description())
				printMap(cmd, "  Characteristics", kind.Characteristics())
				printMap(cmd, "  Defaults", kind.Params())
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
