// Package logging builds the service's zap logger.
//
// Production output is one JSON object per line at info level;
// development mode switches to a colored console encoder at debug
// level. The wrapper embeds *zap.Logger so call sites use zap fields
// directly:
//
//	logger := logging.NewDefault()
//	logger.Info("bundle installed", zap.String("bundle", name))
package logging
