package main

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/triagemap/internal/boundary"
)

var (
	boundaryFetchURL  string
	boundaryFetchDest string
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Manage the boundary catalog",
}

var boundaryFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a boundary catalog (GeoJSON, shapefile, or zip of either)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		url := boundaryFetchURL
		if url == "" {
			url = cfg.Boundary.URL
		}
		if url == "" {
			return eris.New("--url or boundary.url is required")
		}

		client := &http.Client{Timeout: 5 * time.Minute}
		path, err := boundary.Fetch(cmd.Context(), client, url, boundaryFetchDest)
		if err != nil {
			return err
		}

		fields, err := boundary.FieldsByKey(cfg.Boundary.NameFields)
		if err != nil {
			return err
		}
		cat, err := boundary.Load(path, fields)
		if err != nil {
			return eris.Wrap(err, "verify downloaded catalog")
		}

		zap.L().Info("boundary catalog fetched",
			zap.String("path", path),
			zap.Int("regions", cat.Len()),
		)
		cmd.Println(path)
		return nil
	},
}

func init() {
	boundaryFetchCmd.Flags().StringVar(&boundaryFetchURL, "url", "", "download URL (default from config)")
	boundaryFetchCmd.Flags().StringVar(&boundaryFetchDest, "dest", "data/boundaries", "destination directory")
	boundaryCmd.AddCommand(boundaryFetchCmd)
	rootCmd.AddCommand(boundaryCmd)
}
