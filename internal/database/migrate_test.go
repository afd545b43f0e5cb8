package database

import (
	"strings"
	"testing"
)

func TestMigrationsAreOrderedAndEmbedded(t *testing.T) {
	files, err := Migrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no migrations embedded")
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("migrations out of order: %s before %s", files[i-1], files[i])
		}
	}
	for _, f := range files {
		if !strings.HasSuffix(f, ".sql") {
			t.Errorf("unexpected migration file %s", f)
		}
	}
}
