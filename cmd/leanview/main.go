// Package main is the entry point for the leanview terminal infoview.
package main

import "os"

func main() {
	os.Exit(run())
}
