// Package main is the entry point for the tbench CLI.
package main

import "tbench.dev/pkg/tbench/cmd"

func main() {
	cmd.Execute()
}
