// Package chart draws a resolved day in the terminal.
package chart

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/dayparts/pkg/daypart"
	"github.com/codeGROOVE-dev/dayparts/pkg/distribution"
	"github.com/codeGROOVE-dev/dayparts/pkg/resolve"
)

const barWidth = 40

var palette = []color.Attribute{
	color.FgBlue,
	color.FgYellow,
	color.FgGreen,
	color.FgMagenta,
	color.FgCyan,
	color.FgRed,
}

// Render draws one row per resolved hour: the letters of the categories
// whose interval holds the hour, a bound marker ("[" start, "]" end, "|"
// both) and a bar of the evidence weight at that hour.
func Render(sol *resolve.Solution) string {
	var out strings.Builder
	fmt.Fprintf(&out, "Day parts (%s, objective %.2f)\n", sol.Objective, sol.Value)
	out.WriteString(strings.Repeat("─", 50) + "\n")

	letters := Letters(sol.Intervals)
	colors := make([]*color.Color, len(sol.Intervals))
	for i := range sol.Intervals {
		colors[i] = color.New(palette[i%len(palette)])
	}

	maxWeight := 0.0
	for h := daypart.FirstHour; h <= daypart.LastHour; h++ {
		for _, iv := range sol.Intervals {
			maxWeight = max(maxWeight, weight(iv, h))
		}
	}

	grey := color.New(color.FgHiBlack)
	for h := daypart.FirstHour; h <= daypart.LastHour; h++ {
		var line strings.Builder
		fmt.Fprintf(&line, "%02d:00 ", h)

		owners := 0
		starts, ends := false, false
		total := 0.0
		for i, iv := range sol.Intervals {
			if !iv.Contains(h) {
				continue
			}
			if owners < 2 {
				line.WriteString(colors[i].Sprint(string(letters[i])))
			}
			owners++
			starts = starts || iv.Start == h
			ends = ends || iv.End == h
			total += weight(iv, h)
		}
		line.WriteString(strings.Repeat(" ", max(0, 2-owners)))

		switch {
		case starts && ends:
			line.WriteString("| ")
		case starts:
			line.WriteString("[ ")
		case ends:
			line.WriteString("] ")
		default:
			line.WriteString("  ")
		}

		if total > 0 {
			fmt.Fprintf(&line, "(%6.2f) ", total)
			n := int(math.Round(total / maxWeight * barWidth))
			if n == 0 {
				line.WriteString(grey.Sprint("·"))
			} else {
				line.WriteString(grey.Sprint(strings.Repeat("█", n)))
			}
		}
		out.WriteString(strings.TrimRight(line.String(), " ") + "\n")
	}

	out.WriteString(strings.Repeat("─", 50) + "\n")
	for i, iv := range sol.Intervals {
		fmt.Fprintf(&out, "%s %-10s %02d-%02d (%dh)\n", colors[i].Sprint(string(letters[i])), iv.Category, iv.Start, iv.End, iv.Duration())
	}
	return out.String()
}

func weight(iv resolve.Interval, h int) float64 {
	return at(iv.Hours, h) + at(iv.StartHours, h) + at(iv.EndHours, h)
}

func at(hist distribution.Histogram, h int) float64 {
	if hist == nil {
		return 0
	}
	return hist[h]
}

// Letters picks one distinct capital letter per interval: the first letter
// of its name not already taken, or a digit when none is left.
func Letters(ivs []resolve.Interval) []rune {
	taken := make(map[rune]bool)
	out := make([]rune, len(ivs))
	for i, iv := range ivs {
		out[i] = rune('0' + i%10)
		for _, r := range iv.Category {
			r = unicode.ToUpper(r)
			if unicode.IsLetter(r) && !taken[r] {
				out[i] = r
				break
			}
		}
		taken[out[i]] = true
	}
	return out
}
