package main

import "github.com/tes-agency/portal/cmd/server/cmd"

func main() {
	cmd.Execute()
}
