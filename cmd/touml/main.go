// Package main is the entry point for the touml CLI.
package main

import "github.com/touml/touml/internal/cmd"

func main() {
	cmd.Execute()
}
