package main

import "github.com/kozaktomas/labface/cmd"

func main() {
	cmd.Execute()
}
