package main

import "github.com/sheenazien8/mysql2mongo/cmd"

func main() {
	cmd.Execute()
}
