package main

import (
	"fmt"
	"os"

	"github.com/Swind/go-job-center/cmd/jobcenter/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
