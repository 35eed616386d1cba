package storage

import (
	"testing"
)

func TestOpenDialector(t *testing.T) {
	tests := []struct {
		driver   string
		expected string
		wantErr  bool
	}{
		{driver: "mysql", expected: "mysql"},
		{driver: "", expected: "mysql"},
		{driver: "postgres", expected: "postgres"},
		{driver: "sqlite", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := openDialector(tt.driver, "dsn")
			if tt.wantErr {
				if err == nil {
					t.Error("expected error for unsupported driver")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Name() != tt.expected {
				t.Errorf("Name() = %q, expected %q", d.Name(), tt.expected)
			}
		})
	}
}

func TestOpportunityRecordDefaults(t *testing.T) {
	rec := &OpportunityRecord{}
	if err := rec.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}
	if len(rec.ID) != 36 {
		t.Errorf("ID = %q, expected a UUID", rec.ID)
	}
	if rec.DetectedTS == 0 {
		t.Error("DetectedTS should default to now")
	}

	kept := &OpportunityRecord{ID: "fixed", DetectedTS: 42}
	kept.BeforeCreate(nil)
	if kept.ID != "fixed" || kept.DetectedTS != 42 {
		t.Error("BeforeCreate should not overwrite explicit values")
	}
}
