package main

import (
	"cetracker/cmd/cetracker/commands"
	"cetracker/lib/util/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
