package main

import "github.com/microlearn/auth-service/cmd"

func main() {
	cmd.Execute()
}
