package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type runRow struct {
	Name   string `json:"name" yaml:"name"`
	Status string `json:"status" yaml:"status"`
}

type runRows []runRow

func (r runRows) Table() Table {
	t := NewTable("NAME", "STATUS")
	for _, row := range r {
		t.Append(row.Name, row.Status)
	}
	t.Highlight = func(cells []string) bool { return cells[1] == "failed" }
	return t
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(runRow{Name: "a2b", Status: "ok"}, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	var got runRow
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got.Name != "a2b" {
		t.Errorf("Name = %q", got.Name)
	}
}

func TestOutputYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(runRow{Name: "a2b"}, OutputOptions{Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "name: a2b") {
		t.Errorf("yaml = %q", buf.String())
	}
}

func TestOutputTable(t *testing.T) {
	var buf bytes.Buffer
	rows := runRows{{"alice2bob", "succeeded"}, {"carol2dan", "failed"}}
	if err := Output(rows, OutputOptions{Format: FormatTable, Writer: &buf}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"NAME", "STATUS", "alice2bob", "carol2dan", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "\n"); n != 4 {
		t.Errorf("table has %d lines, want 4:\n%s", n, out)
	}
}

func TestOutputTableUnsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := Output(runRow{}, OutputOptions{Format: FormatTable, Writer: &buf}); err == nil {
		t.Fatal("expected error for non-Tabler")
	}
	if err := Output(runRow{}, OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestOutputQuery(t *testing.T) {
	var buf bytes.Buffer
	rows := runRows{{"alice2bob", "succeeded"}, {"carol2dan", "failed"}}
	err := Output(rows, OutputOptions{Writer: &buf, Query: `.[] | select(.status == "failed") | .name`})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != `"carol2dan"` {
		t.Errorf("query output = %q", got)
	}
	if _, err := Query(rows, ".[] |"); err == nil {
		t.Error("expected parse error")
	}
}

func TestParseRequest(t *testing.T) {
	type req struct {
		Source string `yaml:"source" json:"source"`
	}
	var r req
	if err := ParseRequest([]byte("source: /data/a\n"), "r.yaml", &r); err != nil || r.Source != "/data/a" {
		t.Fatalf("yaml: %v %+v", err, r)
	}
	r = req{}
	if err := ParseRequest([]byte(`{"source":"/data/b"}`), "r.json", &r); err != nil || r.Source != "/data/b" {
		t.Fatalf("json: %v %+v", err, r)
	}
	r = req{}
	if err := ParseRequest([]byte(`{"source":"/data/d",}`), "r.json", &r); err != nil || r.Source != "/data/d" {
		t.Fatalf("repaired json: %v %+v", err, r)
	}
	r = req{}
	if err := ParseRequest([]byte(`{"source":"/data/c"}`), "r.txt", &r); err != nil || r.Source != "/data/c" {
		t.Fatalf("sniff: %v %+v", err, r)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{850, "850ms"},
		{12300, "12.3s"},
		{245000, "4m5.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(time.Duration(tt.ms)*time.Millisecond); got != tt.want {
			t.Errorf("FormatDuration(%dms) = %q, want %q", tt.ms, got, tt.want)
		}
	}
	if got := FormatBytes(1536); got != "1.50 KB" {
		t.Errorf("FormatBytes = %q", got)
	}
}
