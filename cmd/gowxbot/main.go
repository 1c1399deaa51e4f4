package main

import (
	"github.com/kamir/gowxbot/cmd/gowxbot/cmd"
)

func main() {
	cmd.Execute()
}
