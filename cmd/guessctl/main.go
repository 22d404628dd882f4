package main

import "github.com/mcoot/guessduel-go/internal/cli"

func main() {
	cli.Execute()
}
