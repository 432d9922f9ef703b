package main

import "github.com/bnema/vpkctl/cmd"

func main() {
	cmd.Execute()
}
