package main

import "github.com/shahryar908/researchy/cmd"

func main() {
	cmd.Execute()
}
