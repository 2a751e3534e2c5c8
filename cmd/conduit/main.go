package main

import "github.com/conduitmcp/conduit/cmd/conduit/cmd"

func main() {
	cmd.Execute()
}
