package main

import "github.com/Yates-Labs/narraitor/cmd"

func main() {
	cmd.Execute()
}
