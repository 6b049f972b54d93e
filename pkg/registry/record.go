package registry

import (
	"math"
	"strconv"
	"strings"
)

// Field is one raw registry cell for a known indicator column.
// The zero value means the column was missing from the file.
type Field struct {
	Raw     string `json:",omitempty"`
	Present bool   `json:",omitempty"`
}

// Float parses the cell as a non-negative decimal ("4", "3.5").
// Blank, negative and non-numeric values ("Not Available") report false.
func (f Field) Float() (float64, bool) {
	if !f.Present {
		return 0, false
	}
	s := strings.TrimSpace(f.Raw)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Record is one row of the registry.
//
// Identity columns get typed fields, quality indicators get Field values so
// "missing" and "present but non-numeric" stay distinguishable, and every
// other column lands in Extra.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Record struct {
	ID        string `json:",omitempty"` // CMS certification number (CCN)
	Name      string `json:",omitempty"`
	Address   string `json:",omitempty"`
	City      string `json:",omitempty"`
	State     string `json:",omitempty"`
	ZIP       string `json:",omitempty"`
	County    string `json:",omitempty"`
	Phone     string `json:",omitempty"`
	Type      string `json:",omitempty"`
	Ownership string `json:",omitempty"`

	OverallRating               Field `json:",omitzero"`
	PatientExperienceRating     Field `json:",omitzero"`
	MortalityComparison         Field `json:",omitzero"`
	SafetyComparison            Field `json:",omitzero"`
	ReadmissionComparison       Field `json:",omitzero"`
	PatientExperienceComparison Field `json:",omitzero"`

	Extra map[string]string `json:",omitempty"`
}

// binding ties a header label to a Record field.
type binding struct {
	get func(*Record) string
	set func(*Record, string)
}

func text(p func(*Record) *string) binding {
	return binding{
		get: func(r *Record) string { return *p(r) },
		set: func(r *Record, v string) { *p(r) = v },
	}
}

func indicator(p func(*Record) *Field) binding {
	return binding{
		get: func(r *Record) string { return p(r).Raw },
		set: func(r *Record, v string) { *p(r) = Field{Raw: v, Present: true} },
	}
}

// bindings maps lowercased header labels from the current and legacy
// Hospital General Information layouts to Record fields.
var bindings = map[string]binding{
	"facility id":                    text(func(r *Record) *string { return &r.ID }),
	"provider id":                    text(func(r *Record) *string { return &r.ID }),
	"provider number":                text(func(r *Record) *string { return &r.ID }),
	"ccn":                            text(func(r *Record) *string { return &r.ID }),
	"cms certification number (ccn)": text(func(r *Record) *string { return &r.ID }),
	"facility name":                  text(func(r *Record) *string { return &r.Name }),
	"hospital name":                  text(func(r *Record) *string { return &r.Name }),
	"provider name":                  text(func(r *Record) *string { return &r.Name }),
	"name":                           text(func(r *Record) *string { return &r.Name }),
	"address":                        text(func(r *Record) *string { return &r.Address }),
	"city":                           text(func(r *Record) *string { return &r.City }),
	"city/town":                      text(func(r *Record) *string { return &r.City }),
	"state":                          text(func(r *Record) *string { return &r.State }),
	"zip code":                       text(func(r *Record) *string { return &r.ZIP }),
	"zip":                            text(func(r *Record) *string { return &r.ZIP }),
	"county name":                    text(func(r *Record) *string { return &r.County }),
	"county/parish":                  text(func(r *Record) *string { return &r.County }),
	"phone number":                   text(func(r *Record) *string { return &r.Phone }),
	"telephone number":               text(func(r *Record) *string { return &r.Phone }),
	"hospital type":                  text(func(r *Record) *string { return &r.Type }),
	"hospital ownership":             text(func(r *Record) *string { return &r.Ownership }),

	"hospital overall rating":                indicator(func(r *Record) *Field { return &r.OverallRating }),
	"patient experience rating":              indicator(func(r *Record) *Field { return &r.PatientExperienceRating }),
	"mortality national comparison":          indicator(func(r *Record) *Field { return &r.MortalityComparison }),
	"safety of care national comparison":     indicator(func(r *Record) *Field { return &r.SafetyComparison }),
	"readmission national comparison":        indicator(func(r *Record) *Field { return &r.ReadmissionComparison }),
	"patient experience national comparison": indicator(func(r *Record) *Field { return &r.PatientExperienceComparison }),
}

func bindingFor(label string) (binding, bool) {
	b, ok := bindings[strings.ToLower(strings.TrimSpace(label))]
	return b, ok
}

// NewRecord builds a Record from a header row and one data row.
// Values beyond len(columns) are ignored; missing values are left blank.
func NewRecord(columns, values []string) *Record {
	r := &Record{}
	for i, col := range columns {
		var v string
		if i < len(values) {
			v = strings.TrimSpace(values[i])
		}
		if b, ok := bindingFor(col); ok {
			b.set(r, v)
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[col] = v
	}
	return r
}

// Column returns the raw value stored for a header label.
func (r *Record) Column(label string) string {
	if b, ok := bindingFor(label); ok {
		return b.get(r)
	}
	return r.Extra[label]
}

// Location renders "City, ST" from whatever parts are present.
func (r *Record) Location() string {
	switch {
	case r.City != "" && r.State != "":
		return r.City + ", " + r.State
	case r.City != "":
		return r.City
	default:
		return r.State
	}
}
