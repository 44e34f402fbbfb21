package main

import "github.com/bookspot/bookspot_backend/cmd"

func main() {
	cmd.Execute()
}
