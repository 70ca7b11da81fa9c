package main

import "github.com/tatnall-legacy/leaguemirror/cmd"

func main() {
	cmd.Execute()
}
