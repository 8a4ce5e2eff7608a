package main

import (
	"os"

	"github.com/openbenefits/medscreen/cmd/medscreen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
