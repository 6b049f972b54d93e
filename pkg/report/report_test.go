package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/registry"
	"github.com/chrismillerluma/healthcare-profiler-v2/pkg/signal"
)

func ptr(v float64) *float64 { return &v }

func sampleReport() *Report {
	cols := []string{"Facility ID", "Facility Name", "City/Town", "State", "Hospital overall rating"}
	rec := registry.NewRecord(cols, []string{"050454", "UCSF MEDICAL CENTER", "SAN FRANCISCO", "CA", "4"})
	return &Report{
		RequestID:  "req-1",
		Query:      registry.Query{Name: "UCSF Medical Center"},
		Normalized: "ucsf",
		Match:      Match{Code: registry.Scored, Message: `matched "UCSF MEDICAL CENTER" (score 1.00)`, Score: 1, Matched: true},
		Facility:   rec,
		Columns:    cols,
		Scores:     Scores{Registry: ptr(4), Live: ptr(4.1), Composite: ptr(4.05)},
		Signals: signal.Bundle{
			signal.MapsProfile: {
				{Type: signal.TypePlace, Title: "UCSF Medical Center", Content: "505 Parnassus Ave", Rating: ptr(4.1),
					Fields: map[string]string{"user_ratings_total": "1432"}},
				{Type: signal.TypeReview, Title: "UCSF Medical Center", Author: "Ann", Content: "Excellent care.", Rating: ptr(5)},
				{Type: signal.TypeReview, Title: "UCSF Medical Center", Author: "Bo", Content: "Parking was awful.", Rating: ptr(2)},
			},
			signal.News: {{Type: signal.TypeNews, Title: "UCSF opens wing", URL: "https://news.example/a"}},
			signal.RankingSite: {
				{Type: signal.TypeRanking, Title: "#3 in California"},
				{Type: signal.TypeSpecialty, Title: "Cancer"},
			},
			signal.PatientSurvey: {{Type: signal.TypeSurvey, Fields: map[string]string{"hcahps_measure_id": "H_STAR_RATING", "patient_survey_star_rating": "4"}}},
			signal.ReviewsSite:   nil,
		},
		GeneratedAt: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
	}
}

func openWorkbook(t *testing.T, r *Report) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	if err := r.WriteXLSX(&buf); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	t.Cleanup(func() { f.Close() }) //nolint:errcheck // test cleanup
	return f
}

func TestWorkbookSheets(t *testing.T) {
	f := openWorkbook(t, sampleReport())

	want := []string{SheetFacility, SheetScore, SheetNews, SheetReviews, SheetBusiness, SheetRankings, SheetSurvey}
	if diff := cmp.Diff(want, f.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}

	facility, err := f.GetRows(SheetFacility)
	if err != nil {
		t.Fatal(err)
	}
	wantFacility := [][]string{
		{"Facility ID", "Facility Name", "City/Town", "State", "Hospital overall rating"},
		{"050454", "UCSF MEDICAL CENTER", "SAN FRANCISCO", "CA", "4"},
	}
	if diff := cmp.Diff(wantFacility, facility); diff != "" {
		t.Errorf("facility rows mismatch (-want +got):\n%s", diff)
	}

	reviews, err := f.GetRows(SheetReviews)
	if err != nil {
		t.Fatal(err)
	}
	if len(reviews) != 3 || reviews[1][1] != "Bo" || reviews[2][1] != "Ann" {
		t.Errorf("reviews not worst-first: %v", reviews)
	}
	if reviews[1][3] != "1432" || reviews[1][4] != "505 Parnassus Ave" {
		t.Errorf("review row missing place totals: %v", reviews[1])
	}

	rankings, err := f.GetRows(SheetRankings)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]string{{"Kind", "Value"}, {"Ranking", "#3 in California"}, {"Specialty", "Cancer"}}, rankings); diff != "" {
		t.Errorf("rankings mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkbookEmptyReport(t *testing.T) {
	r := &Report{Query: registry.Query{Name: "Nowhere Clinic"}, Match: MatchFrom(nil)}
	f := openWorkbook(t, r)

	if diff := cmp.Diff([]string{SheetScore}, f.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}
	rows, err := f.GetRows(SheetScore)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Metric", "Value"},
		{"Registry score", "N/A"},
		{"Live rating", "N/A"},
		{"Composite score", "N/A"},
		{"Match", "no data loaded."},
		{"Match score", "0.00"},
		{"Ranking", "N/A"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("score rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveXLSX(t *testing.T) {
	dir := t.TempDir()
	path, err := sampleReport().SaveXLSX(dir)
	if err != nil {
		t.Fatalf("SaveXLSX() error = %v", err)
	}
	if want := filepath.Join(dir, "ucsf_profile.xlsx"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close() //nolint:errcheck // test cleanup
}

func TestFileName(t *testing.T) {
	tests := []struct {
		org  string
		want string
	}{
		{"UCSF Medical Center", "ucsf_profile.xlsx"},
		{"St. Mary's Hospital of Boston", "st_marys_of_boston_profile.xlsx"},
		{"", "organization_profile.xlsx"},
		{"Clinic", "organization_profile.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.org, func(t *testing.T) {
			if got := FileName(tt.org); got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.org, got, tt.want)
			}
		})
	}
}

func TestWorstFirst(t *testing.T) {
	items := []signal.Item{
		{Author: "unrated-1"},
		{Author: "five", Rating: ptr(5)},
		{Author: "one", Rating: ptr(1)},
		{Author: "unrated-2"},
		{Author: "three", Rating: ptr(3)},
	}
	var got []string
	for _, it := range WorstFirst(items) {
		got = append(got, it.Author)
	}
	if diff := cmp.Diff([]string{"one", "three", "five", "unrated-1", "unrated-2"}, got); diff != "" {
		t.Errorf("WorstFirst mismatch (-want +got):\n%s", diff)
	}
	if items[0].Author != "unrated-1" {
		t.Error("WorstFirst must not reorder its input")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := sampleReport().WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["request_id"] != "req-1" {
		t.Errorf("request_id = %v", decoded["request_id"])
	}
	if _, ok := decoded["Columns"]; ok {
		t.Error("Columns should not be serialized")
	}
	scores, ok := decoded["scores"].(map[string]any)
	if !ok || scores["composite"] != 4.05 {
		t.Errorf("scores = %v", decoded["scores"])
	}
}

func TestRankLabel(t *testing.T) {
	r := &Report{}
	if got := r.RankLabel(); got != "N/A" {
		t.Errorf("RankLabel() = %q, want N/A", got)
	}
	if got := sampleReport().RankLabel(); got != "#3 in California" {
		t.Errorf("RankLabel() = %q", got)
	}
}
