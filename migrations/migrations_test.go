package migrations

import (
	"strings"
	"testing"
)

// The repositories bind Go ints straight into these columns; a text
// column here fails at encode time on every insert.
func TestCallRecordNumericColumns(t *testing.T) {
	data, err := FS.ReadFile("00003_create_call_records.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	schema := string(data)

	for _, column := range []string{"duration_secs INT", "max_duration INT"} {
		if !strings.Contains(schema, column) {
			t.Errorf("call_records schema missing %q", column)
		}
	}
	if strings.Contains(schema, "max_duration TEXT") {
		t.Error("max_duration must be INT, the call record stores seconds")
	}
}
