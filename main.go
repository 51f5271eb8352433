package main

import "github.com/moamenhredeen/kvctl/cmd"

func main() {
	cmd.Execute()
}
