package decoder

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestFormatFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"releve.CSV", CSV, false},
		{"export.xlsx", XLSX, false},
		{"old.xls", XLS, false},
		{"notes.pdf", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFromFilename(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("err = %v, want ErrUnsupportedFormat", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want rune
	}{
		{"semicolon", "Date;Libellé;Montant\n01/02/2024;Café;-3,50\n", ';'},
		{"comma", "date,label,amount\n2024-01-01,x,1\n", ','},
		{"tab", "date\tlabel\tamount\n2024-01-01\tx\t1\n", '\t'},
		{"pipe", "date|label|amount\n2024-01-01|x|1\n", '|'},
		{"comma inside quotes", "date;label;amount\n2024-01-01;\"a, b\";1\n", ';'},
		{"single column", "date\n2024-01-01\n", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffDelimiter(tt.text); got != tt.want {
				t.Errorf("sniffDelimiter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeCSV(t *testing.T) {
	data := "\xEF\xBB\xBFDate;Libellé;Montant;;Montant\n01/02/2024;Loyer;-800;;x\n\n;;;;\n02/02/2024;Vente;1 234,56 €;;y\n"
	table, err := Decode(strings.NewReader(data), CSV)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	wantHeaders := []string{"Date", "Libellé", "Montant", "unnamed: 3", "Montant.1"}
	if strings.Join(table.Headers, "|") != strings.Join(wantHeaders, "|") {
		t.Errorf("headers = %q, want %q", table.Headers, wantHeaders)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2 (blank rows dropped)", len(table.Rows))
	}
	if c := table.At(table.Rows[1], 2); c.Kind != Text || c.Str != "1 234,56 €" {
		t.Errorf("amount cell = %+v", c)
	}
	if c := table.At(table.Rows[0], 3); !c.IsEmpty() {
		t.Errorf("blank cell = %+v, want empty", c)
	}
	if c := table.At(table.Rows[0], 42); !c.IsEmpty() {
		t.Errorf("out of range cell = %+v, want empty", c)
	}
}

func TestDecodeCSVWindows1252(t *testing.T) {
	// "Libellé" and "Crédit" encoded as Windows-1252 (é = 0xE9)
	data := []byte("Date;Libell\xe9;Cr\xe9dit\n01/02/2024;Caf\xe9;10\n")
	table, err := Decode(bytes.NewReader(data), CSV)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if table.Headers[1] != "Libellé" || table.Headers[2] != "Crédit" {
		t.Errorf("headers = %q", table.Headers)
	}
	if got := table.At(table.Rows[0], 1).String(); got != "Café" {
		t.Errorf("description = %q, want Café", got)
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, data := range []string{"", "  \n\n", ";;;\n;;\n"} {
		_, err := Decode(strings.NewReader(data), CSV)
		if !errors.Is(err, ErrEmptyFile) {
			t.Errorf("Decode(%q) err = %v, want ErrEmptyFile", data, err)
		}
	}
	if _, err := Decode(strings.NewReader("x"), Format("pdf")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("unknown format err = %v", err)
	}
}

func TestDecodeXLSX(t *testing.T) {
	xl := excelize.NewFile()
	defer xl.Close()
	sheet := xl.GetSheetName(0)

	dateStyle, err := xl.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatal(err)
	}
	xl.SetSheetRow(sheet, "A1", &[]any{"Date", "Libellé", "Débit", "Crédit"})
	xl.SetSheetRow(sheet, "A2", &[]any{45323, "Loyer", 800, nil})
	xl.SetSheetRow(sheet, "A3", &[]any{"2024-02-02", "Facture Client", nil, "5000"})
	xl.SetCellStyle(sheet, "A2", "A2", dateStyle)

	var buf bytes.Buffer
	if err := xl.Write(&buf); err != nil {
		t.Fatal(err)
	}

	table, err := Decode(&buf, XLSX)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(table.Headers) != 4 || table.Headers[2] != "Débit" {
		t.Fatalf("headers = %q", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(table.Rows))
	}

	tests := []struct {
		name string
		cell Cell
		kind CellKind
		want string
	}{
		{"date serial", table.At(table.Rows[0], 0), DateSerial, "45323"},
		{"number", table.At(table.Rows[0], 2), Number, "800"},
		{"missing credit", table.At(table.Rows[0], 3), Empty, ""},
		{"iso text date", table.At(table.Rows[1], 0), Text, "2024-02-02"},
		{"numeric text stays text", table.At(table.Rows[1], 3), Text, "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cell.Kind != tt.kind || tt.cell.String() != tt.want {
				t.Errorf("cell = %+v (%q), want kind %d %q", tt.cell, tt.cell.String(), tt.kind, tt.want)
			}
		})
	}
}

func TestIsDateFormatCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"dd/mm/yyyy", true},
		{"yyyy-mm-dd hh:mm", true},
		{"#,##0.00", false},
		{`0.00" days"`, false},
		{"[Red]0.00", false},
	}
	for _, tt := range tests {
		if got := isDateFormatCode(tt.code); got != tt.want {
			t.Errorf("isDateFormatCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
