package main

import "github.com/example/mealbook/cmd"

func main() {
	cmd.Execute()
}
