package main

import "virtualta/internal/cli"

func main() {
	cli.Execute()
}
