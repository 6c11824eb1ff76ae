package main

import "github.com/vietddude/opsbridge/internal/cli"

func main() {
	cli.Execute()
}
