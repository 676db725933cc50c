package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/address-resolver/app/config"
	"github.com/address-resolver/app/models"
	"github.com/address-resolver/app/services"
	"github.com/address-resolver/helpers/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rt     *services.Runtime
	logger *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "resolver",
		Short: "Turkish address resolution engine",
		Long:  `Normalize, parse, validate, score and de-duplicate Turkish postal addresses`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt != nil {
				rt.Close(context.Background())
			}
			_ = logger.Sync()
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(createResolveCmd())
	rootCmd.AddCommand(createBatchCmd())
	rootCmd.AddCommand(createCompareCmd())
	rootCmd.AddCommand(createClusterCmd())
	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createSeedCmd())
	rootCmd.AddCommand(createExportCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) error {
	appCfg, err := config.LoadApp()
	if err != nil {
		return err
	}
	if logger, err = utils.NewLogger(appCfg.Env); err != nil {
		return err
	}
	rt, err = services.Bootstrap(ctx, appCfg, logger)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func createResolveCmd() *cobra.Command {
	var lat, lon float64
	var useCache bool

	cmd := &cobra.Command{
		Use:   "resolve [address]",
		Short: "Resolve one address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.RawInput{Text: strings.Join(args, " ")}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				in.Coordinates = &models.GeoPoint{Lat: lat, Lon: lon}
			}
			res, _ := rt.Addresses.Resolve(cmd.Context(), in, useCache)
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().BoolVar(&useCache, "cache", false, "use the result cache")
	return cmd
}

func createBatchCmd() *cobra.Command {
	var format, column, out string

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Resolve addresses from a CSV, XLSX or text file as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readInputs(args[0], format, column)
			if err != nil {
				return err
			}
			logger.Info("Batch loaded", zap.String("file", args[0]), zap.Int("addresses", len(inputs)))

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			batch := rt.Addresses.ResolveBatch(cmd.Context(), inputs)
			enc := json.NewEncoder(w)
			for _, r := range batch.Results {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "total=%d succeeded=%d failed=%d pending=%d duration=%.0fms throughput=%.1f/s\n",
				batch.Total, batch.Succeeded, batch.Failed, batch.Pending, batch.DurationMs, batch.Throughput)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format: csv, xlsx or text (default from extension)")
	cmd.Flags().StringVar(&column, "column", "address", "address column for csv and xlsx input")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func createCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare [first] [second]",
		Short: "Score two addresses against each other",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sim, err := rt.Addresses.Compare(cmd.Context(), models.RawInput{Text: args[0]}, models.RawInput{Text: args[1]})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), sim)
		},
	}
}

func createClusterCmd() *cobra.Command {
	var format, column string

	cmd := &cobra.Command{
		Use:   "cluster [file]",
		Short: "Group duplicate addresses from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readInputs(args[0], format, column)
			if err != nil {
				return err
			}
			groups, err := rt.Addresses.Cluster(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, g := range groups {
				fmt.Fprintf(w, "cluster %d:\n", i+1)
				for _, idx := range g {
					fmt.Fprintf(w, "  [%d] %s\n", idx, inputs[idx].Text)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "input format: csv, xlsx or text (default from extension)")
	cmd.Flags().StringVar(&column, "column", "address", "address column for csv and xlsx input")
	return cmd
}

func createValidateCmd() *cobra.Command {
	fields := map[models.ComponentKind]*string{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check components against the reference hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := map[string]string{}
			for k, v := range fields {
				if *v != "" {
					m[string(k)] = *v
				}
			}
			if len(m) == 0 {
				return fmt.Errorf("at least one component flag is required")
			}
			return writeJSON(cmd.OutOrStdout(), rt.Addresses.Validate(models.ComponentsFromMap(m, 1, nil)))
		},
	}
	for _, k := range []models.ComponentKind{models.KindProvince, models.KindDistrict, models.KindNeighborhood, models.KindPostalCode} {
		fields[k] = cmd.Flags().String(strings.ReplaceAll(string(k), "_", "-"), "", string(k))
	}
	return cmd
}

func createSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Mirror the reference hierarchy into Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rt.Admin.SeedReference(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d units (reference %s) in %dms\n",
				res.UnitsProcessed, res.ReferenceVersion, res.ProcessingTimeMs)
			return nil
		},
	}
}

func createExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-reference [file.xlsx]",
		Short: "Write the loaded reference hierarchy to an XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rt.Admin.ExportReference(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d units to %s\n", n, args[0])
			return nil
		},
	}
}
