// Package main implements the genconfig tool that writes banner.default.toml
// from config.RenderDefault.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"flag"
	"fmt"
	"os"

	"tools.zach/dev/bannergen/internal/atomicfile"
	"tools.zach/dev/bannergen/internal/config"
)

func main() {
	// go generate runs from internal/config; the repo root embeds the file.
	out := flag.String("out", "../../banner.default.toml", "output path")
	flag.Parse()

	data, err := config.RenderDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	if err := atomicfile.Write(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}
