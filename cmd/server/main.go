// Package main is the entry point of the category-note API.
//
// main stays minimal: it builds the cobra command tree and runs it. All
// real work lives in internal/ packages.
//
//	category-note serve     run migrations, then serve HTTP
//	category-note migrate   apply (or --down revert) the schema only
//	category-note version   print the build version
package main

import (
	"os"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
