package main

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wellsgz/pingheat/internal/heatmap"
	"github.com/wellsgz/pingheat/internal/replay"
)

type replayOptions struct {
	dir      string
	pattern  string
	final    string
	timezone string
	outDir   string
	scale    int
}

func newReplayCmd() *cobra.Command {
	opts := replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay [data-dir]",
		Short: "Rebuild heatmaps from the target logs and print a summary",
		Long: `replay reads every *_log.txt file of the data directory, aggregates the
records into hour buckets and prints what it found. With --out every month
holding data is also written as a PNG image.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.dir = args[0]
			} else {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				opts.dir = cfg.Global.DataDir
				if !cmd.Flags().Changed("final") {
					opts.final = cfg.Heatmap.FinalBucket
				}
				if !cmd.Flags().Changed("timezone") {
					opts.timezone = cfg.Global.Timezone
				}
			}
			return runReplay(cmd, afero.NewOsFs(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.pattern, "pattern", replay.DefaultPattern, "glob selecting log files")
	cmd.Flags().StringVar(&opts.final, "final", "drop", "what to do with the open hour at end of file (drop or flush)")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "Local", "time zone of the hour buckets")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "write month images to this directory")
	cmd.Flags().IntVar(&opts.scale, "scale", 10, "pixels per hour cell in written images")
	return cmd
}

func runReplay(cmd *cobra.Command, fs afero.Fs, opts replayOptions) error {
	loc := time.Local
	if opts.timezone != "" && opts.timezone != "Local" && opts.timezone != "local" {
		l, err := time.LoadLocation(opts.timezone)
		if err != nil {
			return fmt.Errorf("failed to load timezone: %w", err)
		}
		loc = l
	}
	policy, err := replay.ParseFinalBucketPolicy(opts.final)
	if err != nil {
		return err
	}

	tree := heatmap.NewTree()
	res, err := replay.NewAggregator(loc, policy).ReplayDir(cmd.Context(), fs, opts.dir, opts.pattern, tree)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, res, tree)

	if opts.outDir == "" {
		return nil
	}
	written, err := writeImages(fs, tree, opts.outDir, opts.scale)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d images to %s\n", written, opts.outDir)
	return nil
}

func printSummary(w io.Writer, res replay.DirResult, tree *heatmap.Tree) {
	fmt.Fprintf(w, "%-32s %8s %8s %8s %8s  %s\n", "IDENTITY", "LINES", "SKIPPED", "BUCKETS", "REJECTED", "LATEST")

	ids := make([]string, 0, len(res.ByID))
	for id := range res.ByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		r := res.ByID[id]
		latest := "-"
		if s, ok := tree.Series(id); ok {
			if y, m, ok := s.Latest(); ok {
				latest = fmt.Sprintf("%04d-%02d", y, m)
			}
		}
		fmt.Fprintf(w, "%-32s %8d %8d %8d %8d  %s\n", id, r.Lines, r.Skipped, r.Buckets, r.Rejected, latest)
	}
	fmt.Fprintf(w, "%d files, %d lines, %d buckets\n", res.Files, res.Totals.Lines, res.Totals.Buckets)
}

// writeImages stores every month with data as <identity>_<year>_<month>.png
func writeImages(fs afero.Fs, tree *heatmap.Tree, dir string, scale int) (int, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create image directory: %w", err)
	}

	written := 0
	for _, id := range tree.Identities() {
		s, _ := tree.Series(id)
		for _, year := range s.Years() {
			y, _ := s.Year(year)
			for i := range y.Months {
				month := &y.Months[i]
				if !month.HasData() {
					continue
				}
				name := filepath.Join(dir, fmt.Sprintf("%s_%04d_%02d.png", id, year, month.Number))
				if err := writePNG(fs, name, heatmap.Scale(month.Image(), scale)); err != nil {
					return written, err
				}
				written++
			}
		}
	}
	return written, nil
}

func writePNG(fs afero.Fs, name string, img image.Image) error {
	f, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return f.Close()
}
