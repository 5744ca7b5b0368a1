package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs a first-page search for the terms in
// $TERMS_FILE (default testdata/surnames.txt) three times, bypassing the
// server cache on the last read.
func Search() error {
	mg.Deps(Build)

	termsFile := os.Getenv("TERMS_FILE")
	if termsFile == "" {
		termsFile = "testdata/surnames.txt"
	}
	return sh.RunV("./"+binDir+"/"+binName, "search",
		"--terms-file", termsFile,
		"--page-limit", "1",
		"--repeat", "3",
		"--no-cache-last",
		"--stats",
		"--quiet",
	)
}
