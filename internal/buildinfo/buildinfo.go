// Package buildinfo carries version data set at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/sekure/internal/buildinfo.Version=v1.2.0"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	Version = "N/A"
	Date    = "N/A"
	Commit  = "N/A"
)

func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\nBuild date: %s\nBuild commit: %s\n", Version, Date, Commit)
}
