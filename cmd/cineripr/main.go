package main

import "github.com/cineripr/cineripr/cmd/cineripr/cmd"

func main() {
	cmd.Execute()
}
