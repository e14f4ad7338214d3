/*
Package log provides structured logging for the snapshot metadata engine
using zerolog.

The package exposes a single global Logger, initialized once via Init, and
component-scoped child loggers created with WithComponent, WithCollection,
and WithSnapshot. Component loggers carry their context fields (collection_id,
commit_id) on every subsequent call so call sites don't have to repeat them.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	holderLog := log.WithCollection(collectionID)
	holderLog.Warn().Msg("snapshot superseded, denying scoped access")
*/
package log
