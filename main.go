package main

import "instarelay/cmd"

func main() {
	cmd.Execute()
}
