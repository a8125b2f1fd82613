package main

import "macropulse/internal/cli"

func main() {
	cli.Execute()
}
