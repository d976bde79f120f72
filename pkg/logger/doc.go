// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute constructors,
// and transparent injection of values stored in context.Context.
//
// New creates a *slog.Logger whose handler (text or JSON) is wrapped so that
// attributes stored with ContextWith, and those produced by registered
// ContextExtractor callbacks, are added to every record logged with that
// context.
//
// Helper constructors such as SessionID, Backend and Error live in attr.go
// and keep attribute keys consistent across packages.
//
// # Usage
//
//	import "github.com/dmitrymomot/tabkit/pkg/logger"
//
//	func main() {
//	    var cfg logger.Config
//	    config.MustLoad(&cfg)
//
//	    log := logger.New(logger.WithConfig(cfg))
//	    logger.SetAsDefault(log)
//
//	    log.InfoContext(ctx, "session created",
//	        logger.SessionID("sess-42"),
//	        logger.Shape(100, 4),
//	        logger.Duration(time.Since(start)),
//	    )
//	}
//
// # Configuration
//
//   - WithConfig applies LOG_LEVEL, LOG_FORMAT, APP_ENV and SERVICE_NAME.
//   - WithEnvironment sets per-environment level and format defaults.
//   - WithFormat and WithLevel override them.
//   - WithAttr attaches static attributes.
//   - WithContextExtractors derives attributes from context values.
//
// # Error Handling
//
// Error and Errors produce attributes only for non-nil errors, so
//
//	log.Info("operation finished", logger.Error(err))
//
// needs no nil check.
package logger
