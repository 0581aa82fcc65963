package main

import "videomix/internal/cli"

func main() {
	cli.Execute()
}
