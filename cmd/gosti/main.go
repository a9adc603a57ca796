package main

import "github.com/dbsmedya/gosti/cmd/gosti/cmd"

func main() {
	cmd.Execute()
}
