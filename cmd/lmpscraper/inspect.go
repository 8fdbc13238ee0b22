package main

import (
	"fmt"

	"github.com/jgoulah/lmpscraper/internal/oasis"
	"github.com/spf13/cobra"
)

var (
	inspectFlags     runFlags
	inspectChunkDays int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the OASIS requests a fetch would make",
	Long:  `Prints the report name, request windows and query URLs for the configured range without downloading anything.`,
	Args:  cobra.NoArgs,
	RunE:  runInspect,
}

func init() {
	inspectFlags.register(inspectCmd)
	inspectCmd.Flags().IntVar(&inspectChunkDays, "chunk-days", 0, "days per OASIS request (overrides config)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := inspectFlags.apply(cmd, cfg); err != nil {
		return err
	}
	if cmd.Flags().Changed("chunk-days") {
		cfg.ChunkDays = inspectChunkDays
	}

	params, err := resolveParams(cfg)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := oasis.NewClient(cfg.BaseURL, cfg.GetChunkDays())
	chunks := client.Plan(params.start, params.end)

	fmt.Printf("Node:     %s\n", params.node)
	fmt.Printf("Market:   %s (%s)\n", params.market, params.market.ReportName())
	fmt.Printf("Range:    %s → %s\n", params.startDate, params.endDate)
	fmt.Printf("Requests: %d\n", len(chunks))
	fmt.Println("----------------------------------------")
	for i, chunk := range chunks {
		label := "chunk"
		if chunk.Trailing {
			label = "trailing"
		}
		fmt.Printf("[%d] %-8s %s → %s\n", i+1, label,
			chunk.Start.Format(oasis.QueryTimeLayout), chunk.End.Format(oasis.QueryTimeLayout))
		fmt.Printf("    %s\n", client.URL(params.market, params.node, chunk.Start, chunk.End))
	}
	fmt.Println("----------------------------------------")
	fmt.Printf("Raw CSV:        %s\n", params.rawPath())
	fmt.Printf("Aggregated CSV: %s\n", params.aggregatedPath())

	return nil
}
