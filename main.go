package main

import "github.com/verso-build/verso/cmd"

func main() {
	cmd.Execute()
}
