package main

import "github.com/Tiliavir/feedtrack/cmd"

func main() {
	cmd.Execute()
}
