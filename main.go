package main

import "github.com/openarch-dev/archbase/cmd"

func main() {
	cmd.Execute()
}
