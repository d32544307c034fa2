package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/lib/tracer"
)

func New(ctx context.Context) (*zap.Logger, error) {
	_, span := tracer.Open(ctx, tracer.Named("newLogger"))
	defer span.Close()

	zapConfig := zap.NewProductionConfig()
	zapConfig.DisableCaller = false
	zapConfig.Level.SetLevel(zap.DebugLevel)
	log, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("newLogger: %w", err)
	}
	return log, nil
}

func ForTests() *zap.Logger {
	return zap.Must(zap.NewDevelopment())
}
