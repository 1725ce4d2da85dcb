// Package logger provides structured logging using zerolog.
//
// Loggers are tagged with the component they report for and accept
// structured fields as maps:
//
//	log := logger.Get("di")
//	log.Debug("export resolved", logger.Fields("export", "store", "count", 2))
package logger
