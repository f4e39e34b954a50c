package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"securemeet/relaygate/pkg/capture"
)

func sampleRecords(n int) []capture.Record {
	records := make([]capture.Record, n)
	for i := range records {
		rec := capture.Defaults()
		rec.ID = string(rune('a' + i))
		rec.Timestamp = time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC)
		rec.Proto = capture.ProtoHTTP
		rec.Service = "chat, \"quoted\""
		records[i] = rec
	}
	return records
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v\n%s", err, data)
	}
	return rows
}

func TestCSVExporter(t *testing.T) {
	tests := []struct {
		name     string
		header   bool
		records  int
		wantRows int
	}{
		{"with header", true, 2, 3},
		{"without header", false, 2, 2},
		{"header only", true, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewCSVExporter(tt.header).Export(context.Background(), sampleRecords(tt.records), &buf); err != nil {
				t.Fatal(err)
			}
			rows := readRows(t, buf.Bytes())
			if len(rows) != tt.wantRows {
				t.Fatalf("expected %d rows, got %d", tt.wantRows, len(rows))
			}
			for _, row := range rows {
				if len(row) != len(capture.Columns) {
					t.Errorf("expected %d fields, got %d", len(capture.Columns), len(row))
				}
			}
			if tt.header && strings.Join(rows[0], ",") != strings.Join(capture.Columns, ",") {
				t.Errorf("unexpected header %v", rows[0])
			}
		})
	}
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("expected [], got %s", buf.String())
	}

	buf.Reset()
	if err := NewJSONExporter(true).Export(context.Background(), sampleRecords(2), &buf); err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded[0]["sttl"] != float64(64) || decoded[1]["id"] != "b" {
		t.Errorf("unexpected JSON %v", decoded)
	}
}

func TestFileExporter_AppendsWithSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "traffic.csv")
	exp := NewFileExporter(path)
	ctx := context.Background()

	if err := exp.Export(ctx, sampleRecords(2)); err != nil {
		t.Fatal(err)
	}
	if err := exp.Export(ctx, sampleRecords(3)); err != nil {
		t.Fatal(err)
	}
	if err := exp.Export(ctx, nil); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rows := readRows(t, data)
	if len(rows) != 6 {
		t.Fatalf("expected header + 5 rows, got %d", len(rows))
	}
	headers := 0
	for _, row := range rows {
		if row[0] == "id" {
			headers++
		}
	}
	if headers != 1 {
		t.Errorf("expected exactly one header row, got %d", headers)
	}
}

func TestFileExporter_HeaderForEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewFileExporter(path).Export(context.Background(), sampleRecords(1)); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if rows := readRows(t, data); len(rows) != 2 || rows[0][0] != "id" {
		t.Errorf("expected header in previously empty file, got %v", rows)
	}
}

func TestFileExporter_Failure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	exp := NewFileExporter(filepath.Join(blocker, "traffic.csv"))
	err := exp.Export(context.Background(), sampleRecords(3))
	var exportErr *capture.ExportError
	if !errors.As(err, &exportErr) || exportErr.RecordCount != 3 {
		t.Fatalf("expected ExportError for 3 records, got %v", err)
	}
	if exp.CheckWritable(context.Background()) == nil {
		t.Error("expected readiness check to fail")
	}
}

// faultyFile wraps a real file. shortWrite writes half of the buffer and
// then fails; closeErr is returned after a successful close.
type faultyFile struct {
	*os.File
	shortWrite bool
	closeErr   error
}

func (f *faultyFile) Write(p []byte) (int, error) {
	if f.shortWrite {
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errors.New("no space left on device")
	}
	return f.File.Write(p)
}

func (f *faultyFile) Close() error {
	if err := f.File.Close(); err != nil {
		return err
	}
	return f.closeErr
}

func TestFileExporter_PartialWriteRolledBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.csv")
	exp := NewFileExporter(path)
	ctx := context.Background()

	if err := exp.Export(ctx, sampleRecords(1)); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	exp.open = func(path string) (appendFile, error) {
		f, err := openAppend(path)
		if err != nil {
			return nil, err
		}
		return &faultyFile{File: f.(*os.File), shortWrite: true}, nil
	}
	if err := exp.Export(ctx, sampleRecords(3)); err == nil {
		t.Fatal("expected short write to fail the export")
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatalf("partial rows left behind:\n%s", after)
	}

	exp.open = openAppend
	if err := exp.Export(ctx, sampleRecords(3)); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if rows := readRows(t, data); len(rows) != 5 {
		t.Errorf("expected header + 4 rows after retry, got %d", len(rows))
	}
}

func TestFileExporter_CloseErrorAfterFullWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.csv")
	exp := NewFileExporter(path)
	exp.open = func(path string) (appendFile, error) {
		f, err := openAppend(path)
		if err != nil {
			return nil, err
		}
		return &faultyFile{File: f.(*os.File), closeErr: errors.New("input/output error")}, nil
	}

	if err := exp.Export(context.Background(), sampleRecords(2)); err != nil {
		t.Fatalf("a complete write must count as exported, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if rows := readRows(t, data); len(rows) != 3 {
		t.Errorf("expected header + 2 rows, got %d", len(rows))
	}
}

func TestFileExporter_CheckWritable(t *testing.T) {
	exp := NewFileExporter(filepath.Join(t.TempDir(), "new", "traffic.csv"))
	if err := exp.CheckWritable(context.Background()); err != nil {
		t.Fatalf("expected writable, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(exp.Path()))
	if len(entries) != 0 {
		t.Errorf("writability check file left behind: %v", entries)
	}
}
