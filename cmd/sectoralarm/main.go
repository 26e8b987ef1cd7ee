package main

import (
	"sectoralarm/cmd/sectoralarm/commands"
	"sectoralarm/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
