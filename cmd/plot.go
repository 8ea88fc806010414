package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var (
	seriesPath   string
	smoothWindow int
)

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render training curves from a saved return series",
	Run: func(cmd *cobra.Command, args []string) {
		path := seriesPath
		if path == "" {
			path = filepath.Join(outputDir, "returns.json")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			logrus.Fatalf("Failed to read return series (train first?): %v", err)
		}
		var series TrainingSeries
		if err := json.Unmarshal(data, &series); err != nil {
			logrus.Fatalf("Failed to parse return series: %v", err)
		}
		if len(series.Returns) == 0 {
			logrus.Fatalf("Return series %s is empty", path)
		}
		ensureOutputDir()

		returnsPNG := filepath.Join(outputDir, "returns.png")
		if err := plotSeries(returnsPNG, "Episode return", "Return", series.Returns); err != nil {
			logrus.Fatalf("Failed to render return curve: %v", err)
		}

		productions := make([]float64, len(series.Productions))
		for i, p := range series.Productions {
			productions[i] = float64(p)
		}
		productionPNG := filepath.Join(outputDir, "production.png")
		if err := plotSeries(productionPNG, "Parts produced per episode", "Good parts", productions); err != nil {
			logrus.Fatalf("Failed to render production curve: %v", err)
		}

		logrus.Infof("Curves written to %s and %s", returnsPNG, productionPNG)
	},
}

// plotSeries renders one raw curve plus its moving average.
func plotSeries(path, title, yLabel string, values []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = yLabel

	raw := make(plotter.XYs, len(values))
	for i, v := range values {
		raw[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	rawLine, err := plotter.NewLine(raw)
	if err != nil {
		return err
	}
	rawLine.Color = plotutil.Color(0)
	p.Add(rawLine)
	p.Legend.Add("raw", rawLine)

	smoothed := movingAverage(values, smoothWindow)
	avg := make(plotter.XYs, len(smoothed))
	for i, v := range smoothed {
		avg[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	avgLine, err := plotter.NewLine(avg)
	if err != nil {
		return err
	}
	avgLine.Color = plotutil.Color(1)
	avgLine.Width = 2
	p.Add(avgLine)
	p.Legend.Add("moving avg", avgLine)

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// movingAverage computes a trailing mean with a window capped at the prefix
// length, so the output aligns index-for-index with the input.
func movingAverage(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		out[i] = stat.Mean(values[lo:i+1], nil)
	}
	return out
}

func init() {
	plotCmd.Flags().StringVar(&seriesPath, "series", "", "Return-series path (defaults to <out>/returns.json)")
	plotCmd.Flags().IntVar(&smoothWindow, "window", 100, "Moving-average window in episodes")
	rootCmd.AddCommand(plotCmd)
}
