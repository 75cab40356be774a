// Package main is the entry point of the klocal command.
package main

import "github.com/sarchlab/klocal/klocal/cmd"

func main() {
	cmd.Execute()
}
