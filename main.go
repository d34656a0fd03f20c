package main

import "github.com/tanq16/clipr/cmd"

func main() {
	cmd.Execute()
}
