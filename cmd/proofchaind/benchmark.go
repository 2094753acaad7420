package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahwlsqja/proofchain/chain"
	"github.com/ahwlsqja/proofchain/consensus"
	"github.com/ahwlsqja/proofchain/types"
)

func newBenchmarkCmd(a *app) *cobra.Command {
	var (
		payloads []string
		keys     []string
	)

	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Compare algorithms over a payload set",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.newEngine(consensus.DefaultKind(), nil)
			if err != nil {
				return err
			}

			kinds := chain.DefaultBenchmarkKinds()
			if len(keys) > 0 {
				kinds = kinds[:0]
				for _, key := range keys {
					kind, err := consensus.ParseKind(key, types.Params(a.cfg.Params))
					if err != nil {
						return err
					}
					kinds = append(kinds, kind)
				}
			}

			results, err := engine.BenchmarkKinds(kinds, payloads)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-40s %-15s %-15s\n", "Algorithm", "Time (ms)", "Energy Cost")
			fmt.Fprintln(out, strings.Repeat("-", 70))
			for _, r := range results {
				fmt.Fprintf(out, "%-40s %-15d %-15.6f\n", r.Algorithm, r.Duration.Milliseconds(), r.Energy)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&payloads, "payload", []string{"Transaction 1", "Transaction 2", "Transaction 3"}, "Payloads finalized by every algorithm")
	cmd.Flags().StringSliceVar(&keys, "algorithms", nil, "Algorithm keys to compare instead of the default battery")
	cmd.Flags().StringToString("param", nil, "Parameters applied to every --algorithms entry")
	return cmd
}
