package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"cashlens/internal/classifier"
	"cashlens/internal/decoder"
	"cashlens/internal/filestore"
	"cashlens/internal/ingest"
	"cashlens/internal/lexicon"
	"cashlens/internal/models"
	"cashlens/internal/normalize"
)

func main() {
	encrypted := flag.Bool("encrypted", false, "file was stored encrypted; prompt for the filestore passphrase")
	limit := flag.Int("n", 20, "number of transactions to list")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: ingestcheck [-encrypted] [-n 20] <statement.csv|xlsx|xls>")
		os.Exit(1)
	}
	path := flag.Arg(0)

	data, err := readInput(path, *encrypted)
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}

	name := path
	if *encrypted {
		name = filestore.OriginalExt(path)
	}
	format, err := decoder.FormatFromFilename(name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	p := ingest.NewParser(classifier.New(lexicon.Default()))
	res, err := p.Parse(bytes.NewReader(data), format)
	if err != nil {
		fmt.Printf("Error parsing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Format: %s\n", format)
	fmt.Println("\nDetected Columns:")
	fmt.Println("-----------------")
	for _, role := range []normalize.Role{normalize.Date, normalize.Description, normalize.Amount,
		normalize.Debit, normalize.Credit, normalize.ThirdParty, normalize.Category} {
		if col, ok := res.Roles[role]; ok {
			fmt.Printf("  %-12s: %q (column %d)\n", role, col.Header, col.Index)
		}
	}
	fmt.Printf("\nRows: %d, kept: %d, skipped: %d\n", res.Rows, len(res.Transactions), res.Skipped)

	// Summary by type
	counts := make(map[models.TransactionType]int)
	totals := make(map[models.TransactionType]decimal.Decimal)
	categories := make(map[string]decimal.Decimal)
	for _, t := range res.Transactions {
		counts[t.Type]++
		totals[t.Type] = totals[t.Type].Add(t.Amount)
		categories[t.Category] = categories[t.Category].Add(t.Amount)
	}

	fmt.Println("\nSummary by Type:")
	fmt.Println("----------------")
	for _, typ := range []models.TransactionType{models.Sale, models.Purchase, models.Other} {
		if counts[typ] > 0 {
			fmt.Printf("  %-10s: %4d transactions, total: %12s\n", typ, counts[typ], totals[typ].StringFixed(2))
		}
	}

	fmt.Println("\nSummary by Category:")
	fmt.Println("--------------------")
	names := make([]string, 0, len(categories))
	for c := range categories {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		fmt.Printf("  %-20s: %12s\n", c, categories[c].StringFixed(2))
	}

	fmt.Println("\nTransactions:")
	fmt.Println("-------------")
	for i, t := range res.Transactions {
		if i == *limit {
			fmt.Printf("  ... %d more\n", len(res.Transactions)-*limit)
			break
		}
		fmt.Printf("  %s | %-8s | %12s | %-15s | %s\n",
			t.DateString(), t.Type, t.Amount.StringFixed(2), truncate(t.Category, 15), truncate(t.Description, 50))
	}
}

// readInput decrypts files copied out of an encrypted filestore
func readInput(path string, encrypted bool) ([]byte, error) {
	if !encrypted {
		return os.ReadFile(path)
	}
	fmt.Fprint(os.Stderr, "Filestore passphrase: ")
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	store, err := filestore.New(filepath.Dir(path), strings.TrimSpace(string(pass)))
	if err != nil {
		return nil, err
	}
	return store.Read(filepath.Base(path))
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
