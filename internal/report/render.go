package report

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"stock-analyzer/internal/signal"
)

// fixed formats v with two decimals, or "n/a" when it is not finite.
func fixed(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func fixedPtr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fixed(*v)
}

func percent(v float64) string {
	s := fixed(v)
	if s == "n/a" {
		return s
	}
	return s + "%"
}

// RenderMarkdown renders r as a Markdown document.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis report: %s\n\n", r.Ticker)
	fmt.Fprintf(&b, "As of %s, %d bars, last close %s.\n\n",
		r.AsOf.Format("2006-01-02"), r.Bars, fixed(r.LastClose))

	b.WriteString("## Core metrics\n\n")
	b.WriteString("| Category | Metric | Value |\n|---|---|---|\n")
	if r.Prediction != nil {
		fmt.Fprintf(&b, "| Prediction | Expected return (%d bars) | %s |\n", r.Prediction.Horizon, percent(r.Prediction.ExpectedReturn))
		fmt.Fprintf(&b, "| Prediction | Lower bound | %s |\n", percent(r.Prediction.LowerBound))
		fmt.Fprintf(&b, "| Prediction | Upper bound | %s |\n", percent(r.Prediction.UpperBound))
	}
	if r.Returns != nil {
		fmt.Fprintf(&b, "| Historical | Annualised return | %s |\n", percent(r.Returns.ExpectedReturn))
		fmt.Fprintf(&b, "| Historical | Return band (%s%%) | %s to %s |\n",
			fixed(r.Returns.Confidence*100), percent(r.Returns.LowerBound), percent(r.Returns.UpperBound))
	}
	if r.Risk.Available {
		fmt.Fprintf(&b, "| Risk | Volatility | %s |\n", percent(r.Risk.Volatility))
		fmt.Fprintf(&b, "| Risk | Max drawdown | %s |\n", percent(r.Risk.MaxDrawdown))
		fmt.Fprintf(&b, "| Risk | Sharpe ratio | %s |\n", fixed(r.Risk.Sharpe))
	} else {
		b.WriteString("| Risk | Metrics | unavailable |\n")
	}
	b.WriteString("\n")

	b.WriteString("## Indicators\n\n")
	b.WriteString("| Indicator | Latest |\n|---|---|\n")
	for _, w := range r.Indicators.Windows() {
		fmt.Fprintf(&b, "| MA%d | %s |\n", w, fixedPtr(r.Indicators.MA[w]))
	}
	fmt.Fprintf(&b, "| RSI | %s |\n", fixedPtr(r.Indicators.RSI))
	fmt.Fprintf(&b, "| MACD | %s |\n", fixedPtr(r.Indicators.MACD))
	fmt.Fprintf(&b, "| Signal line | %s |\n", fixedPtr(r.Indicators.Signal))
	fmt.Fprintf(&b, "| Histogram | %s |\n\n", fixedPtr(r.Indicators.Histogram))

	b.WriteString("## Prediction\n\n")
	if r.Prediction == nil {
		reason := r.PredictionErr
		if reason == "" {
			reason = "not run"
		}
		fmt.Fprintf(&b, "prediction unavailable: %s\n\n", reason)
	} else {
		p := r.Prediction
		fmt.Fprintf(&b, "Predicted price %s (current %s, %s), mean model confidence %s.\n\n",
			fixed(p.PredictedPrice), fixed(p.CurrentPrice),
			signal.ChangePercent(p.CurrentPrice, p.PredictedPrice), fixed(p.Confidence))
		b.WriteString("| Model | Confidence | Weight | CV MSE |\n|---|---|---|---|\n")
		for _, m := range p.Models {
			fmt.Fprintf(&b, "| %s | %s | %s | %.6f |\n", m.Name, fixed(m.Confidence), fixed(m.Weight), m.CVScore)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Signal\n\n")
	if r.Signal == nil {
		b.WriteString("No signal without a prediction.\n\n")
	} else {
		s := r.Signal
		fmt.Fprintf(&b, "**%s**\n\n", s.Label)
		fmt.Fprintf(&b, "- Trend: %s\n- Technical: %s\n- Risk: %s\n- Recommendation: %s\n\n",
			s.Trend, s.Technical, s.Risk, s.Recommendation)
	}

	b.WriteString("## Technical suggestion\n\n")
	fmt.Fprintf(&b, "%s (%s strength)\n\n", r.Suggestion.Action, r.Suggestion.Strength)
	for _, line := range r.Suggestion.Signals {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\n")

	if r.Structure != nil && r.Structure.Available {
		st := r.Structure
		b.WriteString("## Market structure\n\n")
		fmt.Fprintf(&b, "Trend %s across %d strokes and %d segments.\n\n", st.Trend, st.Strokes, st.Segments)
		if st.HasLevels {
			fmt.Fprintf(&b, "- Support: %s\n- Resistance: %s\n\n", fixed(st.Support), fixed(st.Resistance))
		}
	}

	if r.Narrative != "" {
		b.WriteString("## Commentary\n\n")
		b.WriteString(strings.TrimSpace(r.Narrative))
		b.WriteString("\n\n")
	}

	if failed := r.Failed(); len(failed) > 0 {
		b.WriteString("## Stage failures\n\n")
		for _, s := range r.Stages {
			if !s.OK {
				fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Error)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Risk disclaimer\n\n")
	for _, line := range Disclaimer {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	return b.String()
}

// RenderHTML renders r to a standalone HTML page.
func RenderHTML(r *Report) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(r)), &body); err != nil {
		return "", fmt.Errorf("failed to render report HTML: %w", err)
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\"/>\n")
	fmt.Fprintf(&page, "<title>%s analysis</title>\n", html.EscapeString(r.Ticker))
	page.WriteString("<style>body{font-family:sans-serif;max-width:900px;margin:2em auto}" +
		"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}
