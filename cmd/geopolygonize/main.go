package main

import "github.com/rainflame/geopolygonize/cmd/geopolygonize/cmd"

func main() {
	cmd.Execute()
}
