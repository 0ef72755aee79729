package main

import "github.com/Togather-Foundation/eventplus/cmd/server/cmd"

func main() {
	cmd.Execute()
}
