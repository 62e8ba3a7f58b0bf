package main

import "github.com/healthpulse/healthpulse/cmd"

func main() {
	cmd.Execute()
}
