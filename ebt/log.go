package ebt

import "go.uber.org/zap"

// logWarn and logDebug tolerate a nil logger so callers that don't
// care about observability can pass one in without a guard at every
// call site (§A of the expanded spec: one package-scoped logger
// injected into constructors, never a global).
func logWarn(log *zap.Logger, msg string, fields ...zap.Field) {
	if log != nil {
		log.Warn(msg, fields...)
	}
}

func logDebug(log *zap.Logger, msg string, fields ...zap.Field) {
	if log != nil {
		log.Debug(msg, fields...)
	}
}

func logInfo(log *zap.Logger, msg string, fields ...zap.Field) {
	if log != nil {
		log.Info(msg, fields...)
	}
}

func logError(log *zap.Logger, msg string, fields ...zap.Field) {
	if log != nil {
		log.Error(msg, fields...)
	}
}
