package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zsiec/framegraph/node"
)

func newRunCommand(loadEngineConfig func() (Config, error)) *cobra.Command {
	var length int64
	var gain float64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demo audio graph through the scheduler and report per-node stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadEngineConfig()
			if err != nil {
				return err
			}
			c, err := newEngine(cfg.Engine)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			out, err := buildDemoGraph(c, length, gain)
			if err != nil {
				return err
			}

			numFrames := out.NumFrames()
			rows := make([][]string, 0, numFrames)
			var totalSamples int64
			for i := 0; i < numFrames; i++ {
				f, err := c.GetFrame(out, i)
				if err != nil {
					return fmt.Errorf("frame %d: %w", i, err)
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", i),
					fmt.Sprintf("%d", f.NumSamples()),
					humanize.Bytes(uint64(f.ByteCost())),
				})
				totalSamples += int64(f.NumSamples())
				f.Release()
			}

			fmt.Println(renderTable(
				[]string{"frame", "samples", "bytes"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight},
			))
			fmt.Printf("%d frames, %d samples, %s resident\n", numFrames, totalSamples, humanize.Bytes(uint64(c.MemoryUsed())))
			return nil
		},
	}
	cmd.Flags().Int64Var(&length, "length", node.AudioFrameSamples*8, "sample count for the generated demo clip")
	cmd.Flags().Float64Var(&gain, "gain", 0.5, "gain multiplier applied by the demo graph's AudioGain stage")
	return cmd
}
