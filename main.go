package main

import (
	"github.com/sergev/libet/experiment"

	// Trigger drivers
	_ "github.com/sergev/libet/xid"
)

func main() {
	experiment.Execute()
}
