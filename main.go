package main

import "github.com/natsukawa/anitrack/cmd"

func main() {
	cmd.Execute()
}
