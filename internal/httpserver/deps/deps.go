package deps

import (
	"time"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/domain"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	// Instance surface
	Service *domain.OrderService // the instance served by this worker

	// Supervisor surface
	Status func() api.Status // snapshot of coordinator + registry
}
