package main

import "github.com/frahmantamala/securemind/cmd"

func main() {
	cmd.Execute()
}
