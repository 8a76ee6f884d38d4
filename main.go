package main

import "github.com/naka-gawa/repo-monitor/cmd"

func main() {
	cmd.Execute()
}
