package main

import (
	"github.com/sidkik/filesync/cmd"
	"github.com/sidkik/filesync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
