package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sells-group/triagemap/internal/geo"
)

// regionResolution is one resolved region as printed and served.
type regionResolution struct {
	Name   string    `json:"name"`
	Center geo.Point `json:"center"`
	Source string    `json:"source"`
}

func explainRegion(env *mapEnv, name string) regionResolution {
	res := env.Resolver.Explain(name)
	return regionResolution{Name: name, Center: res.Point, Source: string(res.Source)}
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <region>...",
	Short: "Print the map point each region resolves to",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("map"); err != nil {
			return err
		}

		cat, reg, err := loadCatalogs(ctx, cfg)
		if err != nil {
			return err
		}
		env := newMapEnv(cfg, cat, reg, nil, nil)

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, name := range args {
			if err := enc.Encode(explainRegion(env, name)); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
