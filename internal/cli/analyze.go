package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "stock-analyzer/internal/errors"
	"stock-analyzer/internal/models"
	"stock-analyzer/internal/pipeline"
	"stock-analyzer/internal/report"
	"stock-analyzer/internal/signal"
	"stock-analyzer/pkg/utils"
)

const analysisTimeout = 5 * time.Minute

// addAnalysisCommands adds analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newIndicatorsCmd(app))
	rootCmd.AddCommand(newRiskCmd(app))
	rootCmd.AddCommand(newPredictCmd(app))
	rootCmd.AddCommand(newSignalCmd())
	rootCmd.AddCommand(newReportCmd(app))
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first day of history (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last day of history (YYYY-MM-DD, default today)")
}

// requestFromFlags builds a pipeline request for ticker from the range and
// cache flags.
func requestFromFlags(cmd *cobra.Command, ticker string) (pipeline.Request, error) {
	req := pipeline.Request{Ticker: ticker}
	var err error
	if req.From, err = dayFlag(cmd, "from"); err != nil {
		return req, err
	}
	if req.To, err = dayFlag(cmd, "to"); err != nil {
		return req, err
	}
	if !req.From.IsZero() && !req.To.IsZero() && req.From.After(req.To) {
		return req, apperrors.NewValidationError("from", req.From.Format("2006-01-02"), "must not be after --to")
	}
	if cmd.Flags().Lookup("refresh") != nil {
		req.Refresh, _ = cmd.Flags().GetBool("refresh")
	}
	return req, nil
}

func dayFlag(cmd *cobra.Command, name string) (time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(name, v, "expected YYYY-MM-DD")
	}
	return t, nil
}

// runReport opens a pipeline, runs req and releases everything again.
func (a *App) runReport(cmd *cobra.Command, req pipeline.Request, withNarrative bool) (*report.Report, error) {
	ctx, cancel := context.WithTimeout(commandContext(cmd), analysisTimeout)
	defer cancel()

	p, cleanup, err := a.openPipeline(ctx, withNarrative)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return p.Run(ctx, req)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <ticker>",
		Short: "Full analysis report for a ticker",
		Long: `Fetch daily history and run every stage:
- Moving averages, RSI and MACD
- Volatility, maximum drawdown, Sharpe ratio and expected return
- Market structure (fractals, strokes, segments, pivots)
- Ensemble price forecast and trading signal
- Optional LLM commentary (--narrative or llm.enabled)`,
		Example: `  analyzer analyze RELIANCE
  analyzer analyze 000001.SZ --from 2023-01-01
  analyzer analyze INFY --no-predict --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			req, err := requestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			req.SkipPrediction, _ = cmd.Flags().GetBool("no-predict")
			withNarrative, _ := cmd.Flags().GetBool("narrative")
			req.SkipNarrative = !withNarrative && !app.Config.LLM.Enabled

			if !output.IsStructured() {
				output.Info("Analyzing %s...", strings.ToUpper(args[0]))
			}
			r, err := app.runReport(cmd, req, withNarrative)
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(r)
			}

			exchange := models.Exchange(app.Config.Data.Exchange)
			printHeader(output, r, exchange)
			printIndicators(output, r)
			printRisk(output, r)
			printPrediction(output, r, exchange)
			printStructure(output, r, exchange)
			if r.Narrative != "" {
				output.Bold("Commentary")
				output.Println(strings.TrimSpace(r.Narrative))
				output.Println()
			}
			printStageFailures(output, r)
			return nil
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().Bool("refresh", false, "ignore cached predictions")
	cmd.Flags().Bool("no-predict", false, "skip the ensemble forecast")
	cmd.Flags().Bool("narrative", false, "add LLM commentary")
	return cmd
}

func newIndicatorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indicators <ticker>",
		Short: "Moving averages, RSI, MACD and the technical suggestion",
		Example: `  analyzer indicators TCS
  analyzer indicators TCS --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			req, err := requestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			req.SkipPrediction, req.SkipNarrative = true, true

			r, err := app.runReport(cmd, req, false)
			if err != nil {
				output.Error("Failed to compute indicators: %v", err)
				return err
			}
			if st, ok := r.Stage(report.StageIndicators); ok && !st.OK {
				output.Error("Indicators unavailable: %s", st.Error)
				return fmt.Errorf("indicators unavailable: %s", st.Error)
			}
			if output.IsStructured() {
				return output.Structured(map[string]interface{}{
					"ticker":     r.Ticker,
					"as_of":      r.AsOf,
					"indicators": r.Indicators,
					"suggestion": r.Suggestion,
				})
			}

			printHeader(output, r, models.Exchange(app.Config.Data.Exchange))
			printIndicators(output, r)
			return nil
		},
	}
	addRangeFlags(cmd)
	return cmd
}

func newRiskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk <ticker>",
		Short: "Volatility, drawdown, Sharpe ratio and expected return",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			req, err := requestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			req.SkipPrediction, req.SkipNarrative = true, true

			r, err := app.runReport(cmd, req, false)
			if err != nil {
				output.Error("Failed to compute risk: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]interface{}{
					"ticker":  r.Ticker,
					"as_of":   r.AsOf,
					"risk":    r.Risk,
					"returns": r.Returns,
				})
			}

			printHeader(output, r, models.Exchange(app.Config.Data.Exchange))
			printRisk(output, r)
			return nil
		},
	}
	addRangeFlags(cmd)
	return cmd
}

func newPredictCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict <ticker>",
		Short: "Ensemble price forecast and trading signal",
		Long: `Train the gradient boosting ensemble on the ticker's indicators and
forecast the close over the configured horizon. Each model's weight is its
out-of-fold confidence share.`,
		Example: `  analyzer predict RELIANCE
  analyzer predict RELIANCE --refresh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			req, err := requestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			req.SkipNarrative = true

			if !output.IsStructured() {
				output.Info("Training ensemble for %s...", strings.ToUpper(args[0]))
			}
			r, err := app.runReport(cmd, req, false)
			if err != nil {
				output.Error("Prediction failed: %v", err)
				return err
			}
			if r.Prediction == nil {
				output.Error("Prediction unavailable: %s", r.PredictionErr)
				return apperrors.NewModelError("ensemble", "predict "+r.Ticker, fmt.Errorf("%s", r.PredictionErr))
			}
			if output.IsStructured() {
				return output.Structured(map[string]interface{}{
					"ticker":     r.Ticker,
					"prediction": r.Prediction,
					"signal":     r.Signal,
				})
			}

			exchange := models.Exchange(app.Config.Data.Exchange)
			printHeader(output, r, exchange)
			printPrediction(output, r, exchange)
			return nil
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().Bool("refresh", false, "ignore cached predictions")
	return cmd
}

func newSignalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signal <current> <predicted>",
		Short: "Classify a price move into a trading signal",
		Example: `  analyzer signal 100 103.5
  analyzer signal 2450.5 2391 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			current, err := parsePrice("current", args[0])
			if err != nil {
				return err
			}
			predicted, err := parsePrice("predicted", args[1])
			if err != nil {
				return err
			}

			s := signal.Classify(current, predicted)
			if output.IsStructured() {
				return output.Structured(s)
			}
			output.Printf("%s  %s\n", output.Label(s.Label), signal.ChangePercent(current, predicted))
			output.Printf("  Trend:          %s\n", s.Trend)
			output.Printf("  Technical:      %s\n", s.Technical)
			output.Printf("  Risk:           %s\n", s.Risk)
			output.Printf("  Recommendation: %s\n", s.Recommendation)
			return nil
		},
	}
}

func parsePrice(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, apperrors.NewValidationError(name, v, "must be a positive price")
	}
	return f, nil
}

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <ticker>",
		Short: "Write the analysis report as Markdown or HTML",
		Example: `  analyzer report RELIANCE --out reliance.md
  analyzer report RELIANCE --format html --out reliance.html --narrative`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			format, _ := cmd.Flags().GetString("format")
			if format != "md" && format != "markdown" && format != "html" {
				return apperrors.NewValidationError("format", format, "must be md or html")
			}
			outPath, _ := cmd.Flags().GetString("out")

			req, err := requestFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			req.SkipPrediction, _ = cmd.Flags().GetBool("no-predict")
			withNarrative, _ := cmd.Flags().GetBool("narrative")
			req.SkipNarrative = !withNarrative && !app.Config.LLM.Enabled

			r, err := app.runReport(cmd, req, withNarrative)
			if err != nil {
				output.Error("Report failed: %v", err)
				return err
			}

			var body string
			if format == "html" {
				if body, err = report.RenderHTML(r); err != nil {
					return err
				}
			} else {
				body = report.RenderMarkdown(r)
			}

			if outPath == "" {
				output.Printf("%s", body)
				return nil
			}
			if err := os.WriteFile(outPath, []byte(body), 0644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			if output.IsStructured() {
				return output.Structured(map[string]string{"ticker": r.Ticker, "path": outPath, "format": format})
			}
			output.Success("✓ Report for %s written to %s", r.Ticker, outPath)
			return nil
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().String("format", "md", "output format: md or html")
	cmd.Flags().String("out", "", "output file (default stdout)")
	cmd.Flags().Bool("refresh", false, "ignore cached predictions")
	cmd.Flags().Bool("no-predict", false, "skip the ensemble forecast")
	cmd.Flags().Bool("narrative", false, "add LLM commentary")
	return cmd
}

func printHeader(output *Output, r *report.Report, exchange models.Exchange) {
	output.Println()
	output.Printf("%s  %s  %s\n",
		output.BoldText(r.Ticker),
		FormatCurrency(r.LastClose, exchange),
		output.Signed(r.DayChange, FormatChange(r.DayChange, r.DayChangePct)))
	output.Dim("as of %s, %d bars, volume %s", FormatDate(r.AsOf), r.Bars, FormatVolumeFor(r.LastVolume, exchange))
	output.Println()
}

func printIndicators(output *Output, r *report.Report) {
	output.Bold("Indicators")
	table := NewTable(output, "INDICATOR", "VALUE")
	for _, n := range r.Indicators.Windows() {
		table.AddRow(fmt.Sprintf("MA%d", n), optional(r.Indicators.MA[n]))
	}
	table.AddRow("RSI", optional(r.Indicators.RSI))
	table.AddRow("MACD", optional(r.Indicators.MACD))
	table.AddRow("Signal", optional(r.Indicators.Signal))
	if h := r.Indicators.Histogram; h != nil {
		table.AddRow("Histogram", output.Signed(*h, optional(h)))
	} else {
		table.AddRow("Histogram", optional(h))
	}
	table.Render()
	output.Println()

	s := r.Suggestion
	output.Printf("Technical view: %s (%s strength, %d bullish / %d bearish)\n",
		output.Action(s.Action), s.Strength, s.Bullish, s.Bearish)
	for _, line := range s.Signals {
		output.Printf("  • %s\n", line)
	}
	output.Println()
}

func printRisk(output *Output, r *report.Report) {
	output.Bold("Risk")
	if !r.Risk.Available {
		output.Warning("Risk metrics unavailable")
	} else {
		output.Printf("  Volatility:      %.2f%%\n", r.Risk.Volatility)
		output.Printf("  Max drawdown:    %s\n", output.Red(fmt.Sprintf("%.2f%%", r.Risk.MaxDrawdown)))
		output.Printf("  Sharpe ratio:    %s\n", output.Signed(r.Risk.Sharpe, fmt.Sprintf("%.2f", r.Risk.Sharpe)))
	}
	if e := r.Returns; e != nil {
		output.Printf("  Expected return: %s  [%s, %s] at %.0f%%\n",
			output.Signed(e.ExpectedReturn, FormatPercent(e.ExpectedReturn)),
			FormatPercent(e.LowerBound), FormatPercent(e.UpperBound), e.Confidence*100)
	}
	output.Println()
}

func printPrediction(output *Output, r *report.Report, exchange models.Exchange) {
	output.Bold("Forecast")
	p := r.Prediction
	if p == nil {
		output.Warning("Prediction unavailable: %s", r.PredictionErr)
		output.Println()
		return
	}

	output.Printf("  %d-bar target:   %s  (%s)\n", p.Horizon,
		FormatCurrency(p.PredictedPrice, exchange),
		output.Signed(p.ExpectedReturn, FormatPercent(p.ExpectedReturn)))
	output.Printf("  Range:           %s to %s\n", FormatCurrency(p.LowerBound, exchange), FormatCurrency(p.UpperBound, exchange))
	output.Printf("  Confidence:      %s\n", FormatConfidence(p.Confidence))
	output.Println()

	table := NewTable(output, "MODEL", "TARGET", "CONFIDENCE", "WEIGHT", "CV MSE")
	for _, m := range p.Models {
		target := "n/a"
		if len(m.Forecast) > 0 {
			target = FormatCurrency(m.Forecast[len(m.Forecast)-1], exchange)
		}
		table.AddRow(m.Name, target, FormatConfidence(m.Confidence), FormatConfidence(m.Weight), fmt.Sprintf("%.4g", m.CVScore))
	}
	table.Render()
	output.Println()

	if s := r.Signal; s != nil {
		output.Printf("Signal: %s\n", output.Label(s.Label))
		output.Printf("  %s\n", s.Recommendation)
		output.Println()
	}
}

func printStructure(output *Output, r *report.Report, exchange models.Exchange) {
	st := r.Structure
	if st == nil || !st.Available {
		return
	}
	output.Bold("Market structure")
	output.Printf("  Trend:           %s (%d strokes, %d segments)\n", st.Trend, st.Strokes, st.Segments)
	if st.HasLevels {
		output.Printf("  Support:         %s\n", FormatCurrency(st.Support, exchange))
		output.Printf("  Resistance:      %s\n", FormatCurrency(st.Resistance, exchange))
	}
	output.Println()
}

func printStageFailures(output *Output, r *report.Report) {
	for _, s := range r.Stages {
		if !s.OK {
			output.Dim("%s: %s", s.Name, s.Error)
		}
	}
}

func optional(v *float64) string {
	return utils.FormatOptional(v, 2)
}
