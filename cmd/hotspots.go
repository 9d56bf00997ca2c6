package main

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/triagemap/internal/hotspot"
	"github.com/sells-group/triagemap/internal/model"
)

var (
	hotspotsDisease     int
	hotspotsAll         bool
	hotspotsConcurrency int
)

// diseaseHotspots is the hotspot list for one disease.
type diseaseHotspots struct {
	DiseaseID     int               `json:"disease_id"`
	Disease       string            `json:"disease,omitempty"`
	TotalPatients int               `json:"total_patients"`
	Hotspots      []hotspot.Hotspot `json:"hotspots"`
}

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Print red-zone hotspots for one or all diseases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !hotspotsAll && hotspotsDisease <= 0 {
			return eris.New("either --disease or --all is required")
		}
		if err := cfg.Validate("map"); err != nil {
			return err
		}

		env, err := initMapEnv(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		var diseases []model.Disease
		if hotspotsAll {
			diseases, err = env.Diseases(ctx)
			if err != nil {
				return eris.Wrap(err, "list diseases")
			}
		} else {
			diseases = []model.Disease{{ID: hotspotsDisease}}
		}

		results, err := collectHotspots(ctx, env, diseases, hotspotsConcurrency)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

// collectHotspots fetches each disease's stats concurrently and extracts its
// hotspots. Results are ordered by disease ID.
func collectHotspots(ctx context.Context, env *mapEnv, diseases []model.Disease, concurrency int) ([]diseaseHotspots, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	results := make([]diseaseHotspots, 0, len(diseases))

	for _, d := range diseases {
		g.Go(func() error {
			resp, err := env.Feed.Fetch(gctx, d.ID)
			if err != nil {
				return err
			}
			out := diseaseHotspots{
				DiseaseID:     d.ID,
				Disease:       d.Name,
				TotalPatients: resp.TotalPatients,
				Hotspots:      env.Extractor.Extract(resp.Regions),
			}
			zap.L().Debug("hotspots extracted", zap.Int("disease_id", d.ID), zap.Int("hotspots", len(out.Hotspots)))

			mu.Lock()
			results = append(results, out)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "collect hotspots")
	}

	sort.Slice(results, func(i, j int) bool { return results[i].DiseaseID < results[j].DiseaseID })
	return results, nil
}

func init() {
	hotspotsCmd.Flags().IntVar(&hotspotsDisease, "disease", 0, "disease ID")
	hotspotsCmd.Flags().BoolVar(&hotspotsAll, "all", false, "every known disease")
	hotspotsCmd.Flags().IntVar(&hotspotsConcurrency, "concurrency", 4, "parallel feed fetches with --all")
	rootCmd.AddCommand(hotspotsCmd)
}
