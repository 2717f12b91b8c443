package main

import (
	"os"

	"termchat/cli"
)

func main() {
	os.Exit(cli.Execute())
}
