// Package main provides the ground station server that coordinates drone
// sessions over WebSocket/WebRTC and relays mission commands.
package main

import (
	"go.viam.com/utils"

	"github.com/skyrelay/groundcore/logging"
	"github.com/skyrelay/groundcore/server"
)

var logger = logging.NewDebugLogger("entrypoint")

func main() {
	utils.ContextualMain(server.RunServer, logger)
}
