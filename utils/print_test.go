// Copyright 2024 Fantom Foundation
// This file is part of Aida Testing Infrastructure for Sonic
//
// Aida is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Aida is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Aida. If not, see <http://www.gnu.org/licenses/>.

package utils

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestPrinters_FileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(path, []byte("old content that is longer"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	ps := NewPrinters().
		AddPrintToFile(path, func() string { return "new" }).
		AddPrintToWriter(&buf, func() string { return "console" })
	defer ps.Close()

	if err := ps.Print(); err != nil {
		t.Fatalf("printing failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "new" {
		t.Errorf("unexpected file content %q", content)
	}
	if buf.String() != "console\n" {
		t.Errorf("unexpected console content %q", buf.String())
	}
}

func TestPrinters_FailingPrinterDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	ps := NewPrinters().
		AddPrintToFile(filepath.Join(t.TempDir(), "missing", "out.txt"), func() string { return "x" }).
		AddPrintToWriter(&buf, func() string { return "y" })

	if err := ps.Print(); err == nil {
		t.Errorf("expected error for unwritable file")
	}
	if buf.String() != "y\n" {
		t.Errorf("second printer did not run")
	}
}

func TestPrinters_Sqlite3ReceivesAllRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.db")
	ps, err := NewPrinters().AddPrintToSqlite3(path,
		"CREATE TABLE IF NOT EXISTS test (name TEXT, count INTEGER)",
		"INSERT INTO test (name, count) VALUES (?, ?)",
		func() [][]any { return [][]any{{"a", 1}, {"b", 2}} },
	)
	if err != nil {
		t.Fatalf("cannot create printer: %v", err)
	}
	if err := ps.Print(); err != nil {
		t.Fatalf("printing failed: %v", err)
	}
	ps.Close()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var sum int
	if err := db.QueryRow("SELECT SUM(count) FROM test").Scan(&sum); err != nil {
		t.Fatal(err)
	}
	if sum != 3 {
		t.Errorf("unexpected sum %d", sum)
	}
}
