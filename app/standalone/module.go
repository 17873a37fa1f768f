package standalone

import (
	"go.uber.org/fx"

	"github.com/appconfd/appconfd/handler"
	"github.com/appconfd/appconfd/internal/server"
	"github.com/appconfd/appconfd/util/logging"
)

func Module(config Config) fx.Option {
	return fx.Module(
		"serve",
		// rename logger for module
		logging.DecorateLogger("serve"),
		// provide handlers
		handler.Module(),
		// provide server
		server.Module(config.HttpConfig),
	)
}
