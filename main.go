package main

import "github.com/nicklasfrahm/podsh/cmd"

func main() {
	cmd.Execute()
}
