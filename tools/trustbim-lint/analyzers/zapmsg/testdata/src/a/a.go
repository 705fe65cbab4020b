package a

import (
	"fmt"

	"go.uber.org/zap"
)

type recorder struct{}

func (recorder) Info(msg string) {}

func bad(logger *zap.Logger, runID string, entities int) {
	logger.Info(fmt.Sprintf("run %s complete", runID))                     // want "zap Info message built with fmt.Sprintf"
	logger.Warn(fmt.Sprintf("%d entities skipped", entities), zap.Int("n", 1)) // want "zap Warn message built with fmt.Sprintf"
}

func good(logger *zap.Logger, runID string, entities int) {
	logger.Info("run complete", zap.String("run_id", runID), zap.Int("entities", entities))
	logger.Debug("detail", zap.String("summary", fmt.Sprintf("%d/%d", entities, entities)))
}

func goodOtherLogger(r recorder, runID string) {
	r.Info(fmt.Sprintf("run %s", runID))
}
