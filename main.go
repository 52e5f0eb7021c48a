package main

import "brew-intelligence/cmd"

func main() {
	cmd.Execute()
}
