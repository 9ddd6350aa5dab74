package main

import "github.com/keibalab/keibadb/internal/cli"

func main() {
	cli.Execute()
}
