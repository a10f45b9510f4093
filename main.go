package main

import "essync/cmd"

func main() {
	cmd.Execute()
}
