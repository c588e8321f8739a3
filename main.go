package main

import "github.com/opendpm/dbdiff/cmd"

func main() {
	cmd.Execute()
}
