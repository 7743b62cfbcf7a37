// Package main is the single-binary entrypoint for the CityLink device
// runtime.
package main

import "github.com/les2feup/citylink/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
