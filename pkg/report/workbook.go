package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/survey"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/usnews"
)

// Sheet names, in workbook order.
const (
	SheetFacility   = "Facility Info"
	SheetScore      = "Score"
	SheetSearchHits = "Search Hits"
	SheetNews       = "News"
	SheetReviews    = "Reviews"
	SheetBusiness   = "Business Profile"
	SheetAbout      = "About"
	SheetRankings   = "Rankings"
	SheetReviewSite = "Review Site"
	SheetSurvey     = "Patient Survey"
)

const (
	defaultSheet   = "Sheet1"
	minColumnWidth = 18
	maxColumnWidth = 80
)

// column renders one cell per item.
type column struct {
	header string
	value  func(signal.Item) any
}

func field(key string) func(signal.Item) any {
	return func(it signal.Item) any { return it.Fields[key] }
}

func rating(it signal.Item) any {
	if it.Rating == nil {
		return ""
	}
	return *it.Rating
}

func scoreCell(v *float64) any {
	if v == nil {
		return "N/A"
	}
	return *v
}

// workbook builds the sheets. Sheets with no rows are left out, except Score
// which is always written.
type workbook struct {
	f      *excelize.File
	header int
	sheets int
}

// Workbook renders the report as a multi-sheet workbook. The caller closes it.
func (r *Report) Workbook() (*excelize.File, error) {
	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("header style: %w", err)
	}
	wb := &workbook{f: f, header: header}

	steps := []func(*Report, *workbook) error{
		facilitySheet,
		scoreSheet,
		itemSheet(SheetSearchHits, signal.WebSearch, nil, []column{
			{"Title", func(it signal.Item) any { return it.Title }},
			{"URL", func(it signal.Item) any { return it.URL }},
			{"Snippet", func(it signal.Item) any { return it.Content }},
		}),
		itemSheet(SheetNews, signal.News, nil, []column{
			{"Title", func(it signal.Item) any { return it.Title }},
			{"Source", func(it signal.Item) any { return it.Author }},
			{"Published", func(it signal.Item) any { return it.Published }},
			{"Link", func(it signal.Item) any { return it.URL }},
		}),
		reviewsSheet,
		itemSheet(SheetBusiness, signal.MapsProfile, []signal.ItemType{signal.TypePlace}, placeColumns),
		itemSheet(SheetAbout, signal.Website, nil, []column{
			{"Title", func(it signal.Item) any { return it.Title }},
			{"Meta Description", func(it signal.Item) any { return it.Content }},
			{"H1", field("h1")},
			{"URL", func(it signal.Item) any { return it.URL }},
			{"Phones", field("phones")},
		}),
		rankingsSheet,
		itemSheet(SheetReviewSite, signal.ReviewsSite, nil, []column{
			{"Type", func(it signal.Item) any { return string(it.Type) }},
			{"Name", func(it signal.Item) any { return it.Title }},
			{"Author", func(it signal.Item) any { return it.Author }},
			{"Rating", rating},
			{"Review", func(it signal.Item) any { return it.Content }},
			{"Published", func(it signal.Item) any { return it.Published }},
			{"URL", func(it signal.Item) any { return it.URL }},
			{"Strategy", func(it signal.Item) any { return it.Strategy }},
		}),
		surveySheet,
	}
	for _, step := range steps {
		if err := step(r, wb); err != nil {
			f.Close() //nolint:errcheck // already failing
			return nil, err
		}
	}
	return f, nil
}

// WriteXLSX writes the workbook to w.
func (r *Report) WriteXLSX(w io.Writer) error {
	f, err := r.Workbook()
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // in-memory file
	return f.Write(w)
}

// SaveXLSX writes the workbook into dir under FileName and returns its path.
func (r *Report) SaveXLSX(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName(r.Query.Name))
	f, err := r.Workbook()
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // in-memory file
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// add writes a sheet with a bold header row. The first sheet written takes
// over the default "Sheet1".
func (wb *workbook) add(name string, header []string, rows [][]any) error {
	if wb.sheets == 0 {
		if err := wb.f.SetSheetName(defaultSheet, name); err != nil {
			return fmt.Errorf("sheet %s: %w", name, err)
		}
	} else if _, err := wb.f.NewSheet(name); err != nil {
		return fmt.Errorf("sheet %s: %w", name, err)
	}
	wb.sheets++

	hdr := make([]any, len(header))
	widths := make([]int, len(header))
	for i, h := range header {
		hdr[i] = h
		widths[i] = max(len(h), minColumnWidth)
	}
	if err := wb.f.SetSheetRow(name, "A1", &hdr); err != nil {
		return err
	}
	if err := wb.f.SetRowStyle(name, 1, 1, wb.header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
		for j, v := range row {
			if j < len(widths) {
				widths[j] = max(widths[j], min(len(fmt.Sprint(v)), maxColumnWidth))
			}
		}
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := wb.f.SetColWidth(name, col, col, float64(w)); err != nil {
			return err
		}
	}
	return nil
}

func itemSheet(name, source string, types []signal.ItemType, cols []column) func(*Report, *workbook) error {
	return func(r *Report, wb *workbook) error {
		items := r.Items(source)
		if len(types) > 0 {
			items = ofType(items, types...)
		}
		if len(items) == 0 {
			return nil
		}
		return wb.add(name, headers(cols), rowsFor(items, cols))
	}
}

func headers(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.header
	}
	return out
}

func rowsFor(items []signal.Item, cols []column) [][]any {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = c.value(it)
		}
		rows = append(rows, row)
	}
	return rows
}

var placeColumns = []column{
	{"Name", func(it signal.Item) any { return it.Title }},
	{"Address", func(it signal.Item) any { return it.Content }},
	{"Rating", rating},
	{"Total Ratings", field("user_ratings_total")},
	{"Phone", field("phone")},
	{"International Phone", field("international_phone")},
	{"Website", func(it signal.Item) any { return it.URL }},
	{"Types", func(it signal.Item) any { return it.Category }},
	{"Opening Hours", field("opening_hours")},
	{"Place ID", field("place_id")},
	{"Maps URL", field("maps_url")},
	{"Latitude", field("lat")},
	{"Longitude", field("lng")},
}

func facilitySheet(r *Report, wb *workbook) error {
	if r.Facility == nil {
		return nil
	}
	cols := r.Columns
	if len(cols) == 0 {
		cols = []string{"Facility ID", "Facility Name", "Address", "City/Town", "State", "ZIP Code", "Telephone Number"}
	}
	row := make([]any, len(cols))
	for i, c := range cols {
		row[i] = r.Facility.Column(c)
	}
	return wb.add(SheetFacility, cols, [][]any{row})
}

func scoreSheet(r *Report, wb *workbook) error {
	rows := [][]any{
		{"Registry score", scoreCell(r.Scores.Registry)},
		{"Live rating", scoreCell(r.Scores.Live)},
		{"Composite score", scoreCell(r.Scores.Composite)},
		{"Match", r.Match.Message},
		{"Match score", strconv.FormatFloat(r.Match.Score, 'f', 2, 64)},
		{"Ranking", r.RankLabel()},
	}
	if r.Hint.City != "" || r.Hint.State != "" {
		rows = append(rows, []any{"Location hint", strings.Trim(r.Hint.City+", "+r.Hint.State, ", ")})
	}
	return wb.add(SheetScore, []string{"Metric", "Value"}, rows)
}

func reviewsSheet(r *Report, wb *workbook) error {
	items := r.Items(signal.MapsProfile)
	place := ofType(items, signal.TypePlace)
	reviews := WorstFirst(ofType(items, signal.TypeReview, signal.TypeSnippet))
	if len(reviews) == 0 {
		return nil
	}
	var total, address string
	if len(place) > 0 {
		total, address = place[0].Fields["user_ratings_total"], place[0].Content
	}
	cols := []column{
		{"Name", func(it signal.Item) any { return it.Title }},
		{"Author", func(it signal.Item) any { return it.Author }},
		{"Rating", rating},
		{"Total Ratings", func(signal.Item) any { return total }},
		{"Address", func(signal.Item) any { return address }},
		{"Review", func(it signal.Item) any { return it.Content }},
		{"Time", func(it signal.Item) any { return it.Published }},
		{"Type", func(it signal.Item) any { return string(it.Type) }},
	}
	return wb.add(SheetReviews, headers(cols), rowsFor(reviews, cols))
}

func rankingsSheet(r *Report, wb *workbook) error {
	items := r.Items(signal.RankingSite)
	if len(items) == 0 {
		return nil
	}
	rows := [][]any{{"Ranking", usnews.Rank(items)}}
	for _, s := range usnews.Specialties(items) {
		rows = append(rows, []any{"Specialty", s})
	}
	return wb.add(SheetRankings, []string{"Kind", "Value"}, rows)
}

func surveySheet(r *Report, wb *workbook) error {
	items := r.Items(signal.PatientSurvey)
	if len(items) == 0 {
		return nil
	}
	cols := survey.Columns(items)
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = it.Fields[c]
		}
		rows = append(rows, row)
	}
	return wb.add(SheetSurvey, cols, rows)
}
