package main

import "github.com/dbsmedya/gomigrate/cmd/gomigrate/cmd"

func main() {
	cmd.Execute()
}
