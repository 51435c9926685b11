package main

import "github.com/hostalia/concierge/cmd"

func main() {
	cmd.Execute()
}
