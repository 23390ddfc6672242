package main

import "github.com/pfrederiksen/event-vetting/internal/cli"

func main() {
	cli.Execute()
}
