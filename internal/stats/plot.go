package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"seekers/internal/model"
)

// WriteFitnessPlot renders mean and best raw distance per generation. The
// image format follows the extension of outPath (png, svg, pdf...).
func WriteFitnessPlot(outPath, title string, reports []model.GenerationReport) error {
	if len(reports) == 0 {
		return fmt.Errorf("no generations to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Distance to target"

	meanPts := make(plotter.XYs, len(reports))
	bestPts := make(plotter.XYs, len(reports))
	for i, report := range reports {
		meanPts[i].X = float64(report.Generation)
		meanPts[i].Y = report.MeanFitness
		bestPts[i].X = float64(report.Generation)
		bestPts[i].Y = report.BestFitness
	}

	meanLine, err := plotter.NewLine(meanPts)
	if err != nil {
		return err
	}
	bestLine, err := plotter.NewLine(bestPts)
	if err != nil {
		return err
	}
	bestLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(plotter.NewGrid(), meanLine, bestLine)
	p.Legend.Add("mean", meanLine)
	p.Legend.Add("best", bestLine)
	p.Legend.Top = true

	return p.Save(6*vg.Inch, 4*vg.Inch, outPath)
}
