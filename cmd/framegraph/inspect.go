package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zsiec/framegraph/filters"
)

func newInspectCommand(loadEngineConfig func() (Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the functions the built-in filter pack registers",
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

			p := filters.NewPlugin()
			rows := make([][]string, 0, len(p.Functions()))
			for _, name := range p.Functions() {
				rows = append(rows, []string{p.Namespace, name})
			}
			fmt.Println(renderTable([]string{"namespace", "function"}, rows, nil))
			fmt.Printf("core %s ready with %d functions\n", c.ID(), len(rows))
			return nil
		},
	}
	return cmd
}
