// Package bootstrap assembles a composed application from its configuration.
//
// NewApp applies config defaults, validates, initializes logging and
// telemetry, creates the root di.Container and attaches the manifest catalog
// named by composition.catalog_file. Shutdown undoes all of it.
//
//	cfg, err := config.LoadConfig("inventory")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.NewApp(ctx, cfg, bootstrap.WithTypes(types))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = app.RunTask(ctx, func(ctx context.Context, c *di.Container) error {
//	    return di.MustResolve[*inventory.Sync](c, "").Run(ctx)
//	})
package bootstrap
