package main

import "ragrace/internal/cli"

func main() {
	cli.Execute()
}
