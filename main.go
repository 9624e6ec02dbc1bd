package main

import "github.com/rusticroots/storefront-api/cmd"

func main() {
	cmd.Execute()
}
