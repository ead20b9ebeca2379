package main

import "github.com/oshokin/garden-controller/cmd/garden-controller/cmd"

func main() {
	cmd.Execute()
}
