package main

import "github.com/nextlevelbuilder/fabot/cmd"

func main() {
	cmd.Execute()
}
