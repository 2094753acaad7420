package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		blocks int
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a chain with the configured algorithm",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.cfg.kind()
			if err != nil {
				return err
			}
			engine, err := a.newEngine(kind, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Algorithm: %s\n", kind.Name())
			fmt.Fprintf(out, "Description: %s\n", kind.Description())

			for i := 1; i <= blocks; i++ {
				res, err := engine.AddBlock(fmt.Sprintf("%s %d", prefix, i))
				if err != nil {
					fmt.Fprintf(out, "  Block %d: failed - %v\n", i, err)
					continue
				}
				fmt.Fprintf(out, "  Block %d: added in %v (hash %s)\n", i, res.ExecutionTime, res.Block.ShortHash(16))
				if res.EnergyCost != nil {
					fmt.Fprintf(out, "    Energy cost: %.6f\n", *res.EnergyCost)
				}
			}

			fmt.Fprintf(out, "Chain validation: %s\n", validity(engine.IsValid()))

			info, err := engine.AlgorithmInfo()
			if err != nil {
				return err
			}
			printMap(cmd, "Statistics", info)
			return a.writeSummary(engine)
		},
	}

	cmd.Flags().String("algorithm", "pow", "Algorithm key: pow|pos|poh|poa|poet|pob|poc|pbft")
	cmd.Flags().StringToString("param", nil, "Algorithm parameter key=value (repeatable)")
	cmd.Flags().IntVar(&blocks, "blocks", 3, "Number of blocks to add")
	cmd.Flags().StringVar(&prefix, "payload", "Transaction", "Payload prefix")
	return cmd
}

func printMap(cmd *cobra.Command, title string, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %s\n", k, m[k])
	}
}
