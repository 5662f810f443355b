package main

import "github.com/croftja/parley/internal/cli"

func main() {
	cli.Execute()
}
