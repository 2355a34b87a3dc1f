package main

import "lawchat/internal/cli"

var version = "dev"

func main() {
	cli.Run(version)
}
