package main

import (
	"context"

	"backoffice/config"
	"backoffice/internal/domain/lifecycle"
	"backoffice/internal/infra/auth"
	logs "backoffice/internal/infra/log"
	"backoffice/internal/infra/persistence/postgres"
	"backoffice/internal/usecase/impl"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// withApp starts a short-lived fx app holding only what one-shot commands need,
// fills targets through fx.Populate and stops the app once run returns.
func withApp(ctx context.Context, run func() error, targets ...any) error {
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			config.New,
			logs.New,
			postgres.New,
			postgres.NewTransactionManager,
			auth.NewBcryptHasher,
			impl.NewSeedService,
		),
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return errors.Wrap(err, "build app")
	}

	startCtx, cancel := context.WithTimeout(ctx, lifecycle.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return errors.Wrap(err, "start app")
	}

	runErr := run()

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), lifecycle.DefaultTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return errors.Wrap(err, "stop app")
	}

	return runErr
}
