package main

import (
	"easypce-backend/cmd/scrape/commands"
	"easypce-backend/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
