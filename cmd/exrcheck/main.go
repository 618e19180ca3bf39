// exrcheck validates OpenEXR files for structural correctness.
//
// Usage:
//
//	exrcheck [-q] <filename> [<filename> ...]
//
// Options:
//
//	-q  Only print errors, not warnings.
//
// Exit codes:
//
//	0: all files valid
//	1: one or more files invalid
//	2: usage error
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/exrlab/goexr/exrutil"
)

func main() {
	quiet := flag.Bool("q", false, "only print errors, not warnings")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-q] <filename> [<filename> ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	allValid := true
	for _, path := range flag.Args() {
		result, err := exrutil.ValidateFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			allValid = false
			continue
		}

		if !result.Valid {
			allValid = false
		}

		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "%s: error: %s\n", path, e)
		}
		if !*quiet {
			for _, w := range result.Warnings {
				fmt.Fprintf(os.Stderr, "%s: warning: %s\n", path, w)
			}
		}
		if result.Valid && !*quiet {
			fmt.Printf("%s: OK\n", path)
		}
	}

	if !allValid {
		os.Exit(1)
	}
}
