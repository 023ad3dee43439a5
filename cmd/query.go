package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/bdnb-api/internal/model"
	"github.com/sells-group/bdnb-api/internal/project"
)

var (
	queryMode   string
	queryPretty bool

	bboxXMin, bboxXMax, bboxYMin, bboxYMax float64

	addressText   string
	addressRadius int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a one-shot building query and print GeoJSON",
}

var queryBBoxCmd = &cobra.Command{
	Use:   "bbox",
	Short: "Query buildings intersecting a Lambert-93 bounding box",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode, err := project.ParseMode(queryMode)
		if err != nil {
			return err
		}
		bbox := model.BBox{XMin: bboxXMin, YMin: bboxYMin, XMax: bboxXMax, YMax: bboxYMax}
		if err := bbox.Validate(); err != nil {
			return err
		}

		env, err := initQueryEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		fc, err := env.Service.ByBBox(ctx, bbox, mode)
		if err != nil {
			return eris.Wrap(err, "query bbox")
		}

		zap.L().Info("bbox query complete", zap.Int("features", len(fc.Features)))
		return writeCollection(cmd.OutOrStdout(), fc, queryPretty)
	},
}

var queryAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Query buildings around a geocoded address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mode, err := project.ParseMode(queryMode)
		if err != nil {
			return err
		}
		if addressText == "" {
			return eris.New("--address is required")
		}

		env, err := initQueryEnv(ctx, "query")
		if err != nil {
			return err
		}
		defer env.Close()

		fc, err := env.Service.ByAddress(ctx, addressText, addressRadius, mode)
		if err != nil {
			return eris.Wrap(err, "query address")
		}

		zap.L().Info("address query complete",
			zap.String("address", addressText),
			zap.Int("radius", addressRadius),
			zap.Int("features", len(fc.Features)),
		)
		return writeCollection(cmd.OutOrStdout(), fc, queryPretty)
	},
}

// writeCollection encodes fc as GeoJSON followed by a newline.
func writeCollection(w io.Writer, fc *geojson.FeatureCollection, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = json.Marshal(fc)
	}
	if err != nil {
		return eris.Wrap(err, "encode feature collection")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func init() {
	queryCmd.PersistentFlags().StringVar(&queryMode, "mode", "full", "response schema: full or basic")
	queryCmd.PersistentFlags().BoolVar(&queryPretty, "pretty", false, "indent the GeoJSON output")

	queryBBoxCmd.Flags().Float64Var(&bboxXMin, "xmin", 0, "minimum easting (EPSG:2154)")
	queryBBoxCmd.Flags().Float64Var(&bboxXMax, "xmax", 0, "maximum easting (EPSG:2154)")
	queryBBoxCmd.Flags().Float64Var(&bboxYMin, "ymin", 0, "minimum northing (EPSG:2154)")
	queryBBoxCmd.Flags().Float64Var(&bboxYMax, "ymax", 0, "maximum northing (EPSG:2154)")
	for _, name := range []string{"xmin", "xmax", "ymin", "ymax"} {
		_ = queryBBoxCmd.MarkFlagRequired(name)
	}

	queryAddressCmd.Flags().StringVar(&addressText, "address", "", "free-text postal address")
	queryAddressCmd.Flags().IntVar(&addressRadius, "radius", 100, "search radius in meters")

	queryCmd.AddCommand(queryBBoxCmd, queryAddressCmd)
	rootCmd.AddCommand(queryCmd)
}
