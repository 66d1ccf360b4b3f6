package infra

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestExtractMarker(t *testing.T) {
	query := "--sql 0b3c1f7e-5a54-4d2f-9b8e-2f6f0c1d9a11\nselect 1;\n"
	marker, body, err := extractMarker(query)
	if err != nil {
		t.Fatalf("extractMarker error: %v", err)
	}
	if marker != "0b3c1f7e-5a54-4d2f-9b8e-2f6f0c1d9a11" {
		t.Fatalf("marker = %q", marker)
	}
	if body != "select 1;" {
		t.Fatalf("body = %q", body)
	}
}

func TestExtractMarkerRejectsUnmarkedQueries(t *testing.T) {
	for _, query := range []string{"", "   ", "select 1;", "--sql not-a-uuid\nselect 1;"} {
		if _, _, err := extractMarker(query); err == nil {
			t.Fatalf("expected error for %q", query)
		}
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)) {
		t.Fatalf("wrapped ErrNoRows should be detected")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatalf("unrelated error should not be treated as no rows")
	}
}

func TestErrorRowReturnsError(t *testing.T) {
	row := errorRow{err: errMarkerMissing}
	var v string
	if err := row.Scan(&v); !errors.Is(err, errMarkerMissing) {
		t.Fatalf("Scan error = %v, want marker error", err)
	}
}

func TestSQLExecutorSurface(t *testing.T) {
	typ := reflect.TypeOf((*SQLExecutor)(nil)).Elem()
	var names []string
	for i := 0; i < typ.NumMethod(); i++ {
		names = append(names, typ.Method(i).Name)
	}
	if strings.Join(names, ",") != "Exec,QueryRow" {
		t.Fatalf("SQLExecutor methods = %v, want [Exec QueryRow]", names)
	}
}
