package main

import "github.com/petrel-dev/mcp-registry/cmd/mcp-registry/cmd"

func main() {
	cmd.Execute()
}
