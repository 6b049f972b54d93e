package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/encoding/unicode"
)

const sampleCSV = `Facility ID,Facility Name,Address,City/Town,State,ZIP Code,Hospital Type,Hospital overall rating,Mortality national comparison,Emergency Services
050454,UCSF Medical Center,505 Parnassus Ave,San Francisco,CA,94143,Acute Care Hospitals,4,Above the national average,Yes
050441,Stanford Health Care,300 Pasteur Dr,Stanford,CA,94305,Acute Care Hospitals,5,Same as the national average,Yes
`

func TestParse(t *testing.T) {
	reg, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	got := reg.Records()[0]
	want := &Record{
		ID:                  "050454",
		Name:                "UCSF Medical Center",
		Address:             "505 Parnassus Ave",
		City:                "San Francisco",
		State:               "CA",
		ZIP:                 "94143",
		Type:                "Acute Care Hospitals",
		OverallRating:       Field{Raw: "4", Present: true},
		MortalityComparison: Field{Raw: "Above the national average", Present: true},
		Extra:               map[string]string{"Emergency Services": "Yes"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("first record mismatch (-want +got):\n%s", diff)
	}

	if c := got.Column("Facility Name"); c != "UCSF Medical Center" {
		t.Errorf("Column(Facility Name) = %q", c)
	}
	if c := got.Column("Emergency Services"); c != "Yes" {
		t.Errorf("Column(Emergency Services) = %q", c)
	}
	if loc := got.Location(); loc != "San Francisco, CA" {
		t.Errorf("Location() = %q", loc)
	}
}

func TestParseSkipsMalformedRows(t *testing.T) {
	in := "Facility Name,City,State\n" +
		"Good Samaritan Hospital,Los Angeles,CA\n" +
		"Too,Many,Cells,Here\n" +
		",,\n" +
		"Short Row Clinic\n"

	reg, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
	short := reg.Records()[1]
	if short.Name != "Short Row Clinic" || short.City != "" || short.State != "" {
		t.Errorf("short row = %+v, want name only", short)
	}
}

func TestDecodeEncodings(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(
		"Facility Name,City,State\nSaint Jérôme Clinic,Austin,TX\n")
	if err != nil {
		t.Fatalf("encode utf-16: %v", err)
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"utf-8", []byte("Facility Name,City,State\nSaint Jérôme Clinic,Austin,TX\n"), "Saint Jérôme Clinic"},
		{"utf-8 bom", []byte("\xef\xbb\xbfFacility Name,City,State\nSaint Jérôme Clinic,Austin,TX\n"), "Saint Jérôme Clinic"},
		{"latin-1", []byte("Facility Name,City,State\nSaint J\xe9r\xf4me Clinic,Austin,TX\n"), "Saint Jérôme Clinic"},
		{"utf-16", []byte(utf16), "Saint Jérôme Clinic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if reg.Len() != 1 {
				t.Fatalf("Len() = %d, want 1", reg.Len())
			}
			if got := reg.Records()[0].Name; got != tt.want {
				t.Errorf("Name = %q, want %q", got, tt.want)
			}
			if col := reg.NameColumn(); col != "Facility Name" {
				t.Errorf("NameColumn() = %q, want %q", col, "Facility Name")
			}
		})
	}
}

func TestDecodeNoRows(t *testing.T) {
	for _, in := range []string{"", "Facility Name,City,State\n"} {
		_, err := Decode([]byte(in))
		if !errors.Is(err, ErrNoRows) {
			t.Errorf("Decode(%q) error = %v, want ErrNoRows", in, err)
		}
	}
}

func TestColumnHeuristics(t *testing.T) {
	tests := []struct {
		header string
		wantNm string
		wantID string
	}{
		{"Facility ID,Facility Name,City", "Facility Name", "Facility ID"},
		{"Provider Number,Hospital Name,State", "Hospital Name", "Provider Number"},
		{"CMS Certification Number (CCN),Provider Name", "Provider Name", "CMS Certification Number (CCN)"},
		{"City,State,Phone", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			reg := New(strings.Split(tt.header, ","), nil)
			if got := reg.NameColumn(); got != tt.wantNm {
				t.Errorf("NameColumn() = %q, want %q", got, tt.wantNm)
			}
			if got := reg.IDColumn(); got != tt.wantID {
				t.Errorf("IDColumn() = %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestFieldFloat(t *testing.T) {
	tests := []struct {
		f      Field
		want   float64
		wantOK bool
	}{
		{Field{Raw: "4", Present: true}, 4, true},
		{Field{Raw: " 3.5 ", Present: true}, 3.5, true},
		{Field{Raw: "Not Available", Present: true}, 0, false},
		{Field{Raw: "", Present: true}, 0, false},
		{Field{Raw: "-1", Present: true}, 0, false},
		{Field{Raw: "NaN", Present: true}, 0, false},
		{Field{Raw: "4"}, 0, false},
	}
	for _, tt := range tests {
		got, ok := tt.f.Float()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%+v.Float() = (%v, %v), want (%v, %v)", tt.f, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRecordScore(t *testing.T) {
	tests := []struct {
		name string
		rec  *Record
		want *float64
	}{
		{
			name: "only parseable indicator counts",
			rec: &Record{
				OverallRating:           Field{Raw: "4", Present: true},
				PatientExperienceRating: Field{Raw: "not-a-number", Present: true},
			},
			want: ptr(4),
		},
		{
			name: "ratings and comparisons average",
			rec: &Record{
				OverallRating:         Field{Raw: "4", Present: true},
				MortalityComparison:   Field{Raw: "Below the national average", Present: true},
				SafetyComparison:      Field{Raw: "Same as the national average", Present: true},
				ReadmissionComparison: Field{Raw: "Above the national average", Present: true},
			},
			want: ptr(3.25),
		},
		{
			name: "rounded to two decimals",
			rec: &Record{
				OverallRating:           Field{Raw: "4", Present: true},
				PatientExperienceRating: Field{Raw: "3", Present: true},
				MortalityComparison:     Field{Raw: "Same as the national average", Present: true},
			},
			want: ptr(3.33),
		},
		{
			name: "nothing parses",
			rec: &Record{
				OverallRating:       Field{Raw: "Not Available", Present: true},
				MortalityComparison: Field{Raw: "Not Available", Present: true},
			},
			want: nil,
		},
		{name: "nil record", rec: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rec.Score()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Score() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func ptr(f float64) *float64 { return &f }
