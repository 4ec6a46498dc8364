package main

import "github.com/KaramelBytes/osdperf-cli/cmd"

func main() {
	cmd.Execute()
}
