package main

import "github.com/applypilot/applypilot/cmd"

func main() {
	cmd.Execute()
}
