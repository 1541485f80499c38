// Package main is the entry point for the sqlaunch CLI.
package main

import (
	"sqlaunch/cli/cmd"
)

func main() {
	cmd.Execute()
}
