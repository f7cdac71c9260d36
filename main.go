package main

import (
	"context"
	"os"

	"github.com/TFMV/fim/cmd"
	"go.uber.org/zap"
)

func main() {
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		code := cmd.ExitCode(err)
		if code == 1 {
			logger, lerr := zap.NewProduction()
			if lerr == nil {
				logger.Error("fim failed", zap.Error(err))
				_ = logger.Sync()
			}
		}
		os.Exit(code)
	}
}
