package main

import "github.com/safeher/safeher/cmd"

func main() {
	cmd.Execute()
}
