package main

import "github.com/devicelab-dev/selfheal/pkg/cli"

func main() {
	cli.Execute()
}
