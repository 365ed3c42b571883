// Dumps raw store keys (optionally values) under a prefix. Debugging
// tool; run it only against a closed database.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"parley/pkg/logger"
	"parley/pkg/store"
)

func main() {
	var (
		path    = flag.String("db", "./.database", "Pebble DB path")
		prefix  = flag.String("prefix", "", "key prefix to scan (empty scans everything)")
		values  = flag.Bool("values", false, "print values as well as keys")
		maxRows = flag.Int("limit", 1000, "maximum rows to print")
	)
	flag.Parse()

	logger.Init()
	if err := store.Open(*path); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	iter, err := store.DBIter()
	if err != nil {
		fmt.Fprintf(os.Stderr, "iter failed: %v\n", err)
		os.Exit(1)
	}
	defer iter.Close()

	pfx := []byte(*prefix)
	n := 0
	for iter.SeekGE(pfx); iter.Valid() && n < *maxRows; iter.Next() {
		if len(pfx) > 0 && !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		if *values {
			fmt.Printf("%s\t%s\n", iter.Key(), iter.Value())
		} else {
			fmt.Printf("%s\n", iter.Key())
		}
		n++
	}
	fmt.Fprintf(os.Stderr, "%d key(s)\n", n)
}
