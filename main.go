// The main package for the position-tracker executable.
package main

import (
	"github.com/sellermetrics/position-tracker/cmd"
)

func main() {
	cmd.Execute()
}
