package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// OutputFormat represents the output format type.
type OutputFormat string

const (
	// FormatYAML outputs as YAML (default for terminal).
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON.
	FormatJSON OutputFormat = "json"
	// FormatTable outputs a lipgloss table; the result must implement Tabler.
	FormatTable OutputFormat = "table"
)

// Tabler is implemented by results that can render as a table.
type Tabler interface {
	Table() Table
}

// OutputOptions configures output behavior.
type OutputOptions struct {
	Format OutputFormat

	// File is the output file path (empty for stdout).
	File string

	// Writer overrides File.
	Writer io.Writer

	// Query is a jq expression applied to the JSON form of the result.
	// Each value it yields is written as one JSON line.
	Query string
}

// Output writes the result to the configured destination.
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout
	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if opts.Query != "" {
		return outputQuery(w, result, opts.Query)
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML, "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable:
		t, ok := result.(Tabler)
		if !ok {
			return fmt.Errorf("%T cannot be shown as a table", result)
		}
		_, err := fmt.Fprintln(w, t.Table().Render())
		return err
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func outputQuery(w io.Writer, result any, expr string) error {
	values, err := Query(result, expr)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// Query runs the jq expression expr over the JSON form of v.
func Query(v any, expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	var out []any
	iter := q.Run(input)
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := r.(error); ok {
			return out, fmt.Errorf("jq error: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// PrintSuccess prints a success message with checkmark.
func PrintSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "✓ "+format+"\n", args...)
}

// PrintInfo prints an info message.
func PrintInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "ℹ "+format+"\n", args...)
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
