package dialect

import "testing"

func TestRebind_Postgres(t *testing.T) {
	d := New("postgres")
	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"
	got := d.Rebind(q)
	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got != want {
		t.Fatalf("Rebind mismatch\nwant: %s\ngot:  %s", want, got)
	}
}

func TestRebind_NoChangeForMySQLSQLite(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
	}{
		{"mysql", New("mysql")},
		{"sqlite", New("sqlite")},
		{"unknown", New("unknown")},
	}

	orig := "DELETE FROM t WHERE id = ? AND name = ?"
	for _, tt := range tests {
		if got := tt.d.Rebind(orig); got != orig {
			t.Fatalf("%s: expected no change, got %s", tt.name, got)
		}
	}
}

func TestOrderNullsLast(t *testing.T) {
	tests := []struct {
		dialect string
		desc    bool
		want    string
	}{
		{"postgres", true, "recipes.total_time DESC NULLS LAST"},
		{"sqlite", false, "recipes.total_time NULLS LAST"},
		{"mysql", true, "recipes.total_time IS NULL, recipes.total_time DESC"},
		{"mysql", false, "recipes.total_time IS NULL, recipes.total_time"},
	}
	for _, tt := range tests {
		if got := New(tt.dialect).OrderNullsLast("recipes.total_time", tt.desc); got != tt.want {
			t.Errorf("%s desc=%v: want %q, got %q", tt.dialect, tt.desc, tt.want, got)
		}
	}
}

func TestUpsertStyle(t *testing.T) {
	cases := map[string]UpsertStyle{
		"sqlite3":    UpsertOnConflict,
		"postgresql": UpsertOnConflict,
		"mysql":      UpsertOnDuplicateKey,
		"oracle":     UpsertNone,
	}
	for name, want := range cases {
		if got := New(name).Upsert(); got != want {
			t.Errorf("%s: want %d, got %d", name, want, got)
		}
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := New("mysql").QuoteIdentifier("catalog.meals"); got != "`catalog`.`meals`" {
		t.Errorf("mysql quote: %s", got)
	}
	if got := New("sqlite").QuoteIdentifier("meals.id"); got != `"meals"."id"` {
		t.Errorf("sqlite quote: %s", got)
	}
	if got := New("").QuoteIdentifier("meals"); got != "meals" {
		t.Errorf("unknown quote: %s", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	sqliteErr := errString("constraint failed: UNIQUE constraint failed: meals.id (1555)")
	if !New("sqlite").IsUniqueViolation(sqliteErr) {
		t.Error("sqlite unique violation not detected")
	}
	if New("sqlite").IsUniqueViolation(errString("no such table: meals")) {
		t.Error("unrelated error classified as unique violation")
	}
	if New("postgres").IsUniqueViolation(nil) {
		t.Error("nil error classified as unique violation")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
