package main

import (
	"spotdetector/cmd/spotdetector-cli/commands"
	"spotdetector/lib/serviceutil"
)

func main() {
	ctx := serviceutil.SignalContext()
	commands.ExecuteContext(ctx)
}
