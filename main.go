package main

import "swell-alerts/internal/cli"

func main() {
	cli.Execute()
}
