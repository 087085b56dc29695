package main

import (
	"context"

	"launtel-backend/cmd/launtel-cli/commands"
	"launtel-backend/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
