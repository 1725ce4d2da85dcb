// Package catalog provides di.Catalog implementations.
//
// Static is an in-memory catalog changed through Add, Remove and Replace.
// File publishes the exports listed in a manifest file and can follow the
// file as it changes:
//
//	types := catalog.NewTypes()
//	_ = types.RegisterType("plugin.audit", di.Describe[*audit.Plugin]())
//
//	cat, err := catalog.NewFile("exports.yml", types)
//	if err != nil {
//	    return err
//	}
//	cat.Watch()
//	_ = container.AddCatalog(cat)
package catalog
