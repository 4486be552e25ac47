package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"regexp"

	"plancal/internal/calendar"
	appLog "plancal/internal/log"
	"plancal/internal/palette"
	"plancal/internal/placement"
	"plancal/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"boxStyle":    boxStyle,
	"markerStyle": markerStyle,
	"px":          func(v float64) template.CSS { return template.CSS(fmt.Sprintf("%.2fpx", v)) },
}).ParseFS(templateFS, "templates/*.html"))

type weekPage struct {
	view.Timeline
	ColumnWidth float64
}

// GET /week?date=2024-04-03 renders the timeline for headless capture.
func (s *Server) handleWeekPage(w http.ResponseWriter, r *http.Request) {
	tl, err := s.timeline(r, calendar.ViewWeek)
	if err != nil {
		s.timelineError(w, err)
		return
	}

	page := weekPage{Timeline: tl, ColumnWidth: s.deps.Builder.Engine.Layout().ColumnWidthPercent}
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "week.html", page); err != nil {
		appLog.Error("week page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// cssColor only lets through characters that appear in hex, rgb() and
// linear-gradient() values.
var cssColor = regexp.MustCompile(`^[#a-zA-Z0-9(),.% -]+$`)

func safeColor(c string) string {
	if c == "" || !cssColor.MatchString(c) {
		return palette.DefaultColor
	}
	return c
}

func boxStyle(p placement.Placement, columnWidth float64) template.CSS {
	style := fmt.Sprintf("top:%.2fpx;height:%.2fpx;left:%.2f%%;width:%.2f%%;background:%s;",
		p.Top, p.Height, p.LanePercent, columnWidth, safeColor(p.Color))
	if p.Accent != "" {
		style += fmt.Sprintf("border-left:3px solid %s;", safeColor(p.Accent))
	}
	return template.CSS(style)
}

func markerStyle(top float64, column int, columnWidth float64) template.CSS {
	return template.CSS(fmt.Sprintf("top:%.2fpx;left:%.2f%%;width:%.2f%%;",
		top, float64(column)*columnWidth, columnWidth))
}
