package main

import "github.com/clipnetic/clipnetic/internal/cli"

func main() {
	cli.Main()
}
