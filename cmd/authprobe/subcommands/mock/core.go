//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package mock

import (
	"context"
	"os"
	"os/signal"

	"github.com/hxci-campus/authprobe/cmd/authprobe/common"
	"github.com/hxci-campus/authprobe/internal/logging"
	"github.com/hxci-campus/authprobe/internal/mockapi"
	"github.com/hxci-campus/authprobe/pkg/config"
	"github.com/urfave/cli/v3"
)

var logger = logging.GetLogger("authprobe")

const agent string = "mock"

// Execute serves the embedded mock campus API for local oracle runs and
// gracefully shuts down on interrupt.
func Execute(ctx context.Context, cmd *cli.Command) error {
	if err := common.Setup(cmd); err != nil {
		return err
	}

	roles, err := common.LoadRoles(cmd)
	if err != nil {
		return err
	}

	server := mockapi.New(mockapi.Options{
		Secret: []byte(config.VConfig.GetString(config.MockSecret)),
		Leaky:  cmd.Bool("leaky"),
		Roles:  roles,
	})

	port := cmd.Int("port")
	apiPort := cmd.Int("api-port")
	server.Start(port, apiPort)
	logger.Infof(agent, "serve", "mock school API on :%d, admin API on :%d", port, apiPort)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info(agent, "shutdown", "Shutting down server...")

	if err := server.Stop(ctx); err != nil {
		return err
	}

	logger.Info(agent, "shutdown", "Server exited gracefully.")
	return nil
}
