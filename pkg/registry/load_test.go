package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestLoaderRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(sampleCSV)) //nolint:errcheck // test helper
	}))
	defer server.Close()

	l := NewLoader(WithURL(server.URL+"/general.csv"), WithHTTPClient(server.Client()))
	reg := l.Load(context.Background())

	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}
	if reg.Source() != "remote" {
		t.Errorf("Source() = %q, want %q", reg.Source(), "remote")
	}
}

func TestLoaderFallsBackToBackup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "hospitals.csv")
	if err := os.WriteFile(path, []byte("Facility Name,City,State\nSaint J\xe9r\xf4me Clinic,Austin,TX\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(WithURL(server.URL), WithHTTPClient(server.Client()), WithBackupPath(path))
	reg := l.Load(context.Background())

	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
	if reg.Source() != "backup" {
		t.Errorf("Source() = %q, want %q", reg.Source(), "backup")
	}
	if got := reg.Records()[0].Name; got != "Saint Jérôme Clinic" {
		t.Errorf("Name = %q, want latin-1 decoded name", got)
	}
}

func TestLoaderUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("")) //nolint:errcheck // test helper
	}))
	defer server.Close()

	l := NewLoader(
		WithURL(server.URL),
		WithHTTPClient(server.Client()),
		WithBackupPath(filepath.Join(t.TempDir(), "missing.csv")),
	)
	reg := l.Load(context.Background())
	if reg == nil {
		t.Fatal("Load() = nil, want empty registry")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
	if got := Match(reg, Query{Name: "UCSF Medical Center"}); got.Code != NoData {
		t.Errorf("Match on unavailable registry = %q, want %q", got.Code, NoData)
	}
}

func TestLoaderReloads(t *testing.T) {
	var body atomic.Pointer[string]
	v1 := "Facility Name,City,State\nFirst Clinic,Reno,NV\n"
	body.Store(&v1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(*body.Load())) //nolint:errcheck // test helper
	}))
	defer server.Close()

	l := NewLoader(WithURL(server.URL), WithHTTPClient(server.Client()))
	first := l.Load(context.Background())

	v2 := "Facility Name,City,State\nFirst Clinic,Reno,NV\nSecond Clinic,Elko,NV\n"
	body.Store(&v2)
	second := l.Load(context.Background())

	if first.Len() != 1 || second.Len() != 2 {
		t.Errorf("Len() first=%d second=%d, want 1 and 2", first.Len(), second.Len())
	}
}
