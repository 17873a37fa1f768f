package handler

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("handler",
		fx.Provide(NewConfigHandler),
		fx.Provide(NewConfigurationRoute),
		fx.Provide(NewHealthRoute),
	)
}
