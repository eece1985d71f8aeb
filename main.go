package main

import "github.com/ekaya-inc/ekaya-datadict/pkg/cli"

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cli.Execute(Version)
}
