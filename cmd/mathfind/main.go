package main

import "github.com/MeKo-Tech/mathfind/cmd/mathfind/cmd"

func main() {
	cmd.Execute()
}
