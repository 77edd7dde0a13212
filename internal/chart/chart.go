// Package chart scales a single labelled series into SVG plot coordinates.
package chart

import (
	"strconv"
	"strings"
)

// Sample is one labelled value of a series.
type Sample struct {
	Label string
	Value float64
}

// Dimensions describe the SVG viewBox and the inner padding of the plot area.
type Dimensions struct {
	Width   float64
	Height  float64
	Padding float64
}

// DefaultDimensions matches the dashboard's trend card.
var DefaultDimensions = Dimensions{Width: 300, Height: 150, Padding: 20}

// Point is a sample placed in SVG space. Y grows downwards.
type Point struct {
	X     float64
	Y     float64
	Label string
	Value float64
}

// Line is an axis segment.
type Line struct {
	X1, Y1, X2, Y2 float64
}

// Chart is everything a template needs to draw the series.
type Chart struct {
	Dimensions
	Points []Point
	YAxis  Line
	XAxis  Line
}

// Plot places samples so the smallest value sits on the bottom edge of the
// plot area and the largest on the top edge. Flat series use a range of 1,
// which keeps every point on the bottom edge.
func Plot(samples []Sample, dim Dimensions) Chart {
	c := Chart{
		Dimensions: dim,
		YAxis:      Line{X1: dim.Padding, Y1: dim.Padding, X2: dim.Padding, Y2: dim.Height - dim.Padding},
		XAxis:      Line{X1: dim.Padding, Y1: dim.Height - dim.Padding, X2: dim.Width - dim.Padding, Y2: dim.Height - dim.Padding},
	}
	if len(samples) == 0 {
		return c
	}

	minVal, maxVal := samples[0].Value, samples[0].Value
	for _, s := range samples[1:] {
		minVal = min(minVal, s.Value)
		maxVal = max(maxVal, s.Value)
	}
	valueRange := maxVal - minVal
	if valueRange == 0 {
		valueRange = 1
	}

	plotW := dim.Width - 2*dim.Padding
	plotH := dim.Height - 2*dim.Padding
	c.Points = make([]Point, len(samples))
	for i, s := range samples {
		x := dim.Padding + plotW/2
		if len(samples) > 1 {
			x = dim.Padding + float64(i)/float64(len(samples)-1)*plotW
		}
		y := dim.Height - dim.Padding - (s.Value-minVal)/valueRange*plotH
		c.Points[i] = Point{X: x, Y: y, Label: s.Label, Value: s.Value}
	}
	return c
}

// Polyline renders the points in SVG "x,y x,y" form.
func (c Chart) Polyline() string {
	var b strings.Builder
	for i, p := range c.Points {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatCoord(p.X))
		b.WriteByte(',')
		b.WriteString(formatCoord(p.Y))
	}
	return b.String()
}

// ViewBox renders the SVG viewBox attribute.
func (c Chart) ViewBox() string {
	return "0 0 " + formatCoord(c.Width) + " " + formatCoord(c.Height)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
