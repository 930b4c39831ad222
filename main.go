package main

import (
	"fmt"
	"os"

	"github.com/nhle/remindme/cmd"
)

var (
	version string = "dev"
	commit  string
	date    string
)

func main() {
	err := cmd.Execute(os.Args, cmd.BuildArgs{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "remindme: %s\n", err.Error())
		os.Exit(1)
	}
}
