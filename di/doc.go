// Package di provides a recomposing dependency injection container.
//
// A Container holds named exports: ready instances, constructible types
// described with Describe or Open, and factories. Exports arrive directly or
// from catalogs, and every change runs one composition cycle that rebuilds
// the registry, releases what was withdrawn and re-resolves the imports of
// every instance the container has built.
//
// # Declaring types
//
//	store := di.Describe[*inventory.Store](
//	    di.Constructor(inventory.NewStore, "db"),
//	    di.Shared(),
//	)
//	_ = c.AddType("", store, false)
//
// # Imports
//
// Struct fields tagged compose are filled from the container. Slices,
// *ExportSet[T], func() T and *Lazy[T] fields receive every match, a set of
// matches, or a deferred handle.
//
//	type Checkout struct {
//	    Store    *inventory.Store   `compose:""`
//	    Pricers  []pricing.Rule     `compose:"pricing,recompose"`
//	    Payments *di.Lazy[*pay.API] `compose:"payments"`
//	}
//
// # Resolution
//
//	store := di.MustResolve[*inventory.Store](c, "")
//
// Changes are applied through Batch for atomicity; single-operation methods
// such as AddInstance commit a batch of one.
package di
