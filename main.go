// Package main is the entry point for the vodoo CLI.
package main

import (
	"vodoo/cli/cmd"
)

func main() {
	cmd.Execute()
}
