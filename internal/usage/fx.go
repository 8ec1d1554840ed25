package usage

import (
	"github.com/smallbiznis/wadesk/internal/config"
	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
	"github.com/smallbiznis/wadesk/internal/usage/repository"
	"github.com/smallbiznis/wadesk/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(NewCalendar),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

// NewCalendar builds the reference calendar from USAGE_TIMEZONE. An unknown
// zone aborts startup.
func NewCalendar(cfg config.Config) (usagedomain.Calendar, error) {
	loc, err := cfg.Location()
	if err != nil {
		return usagedomain.Calendar{}, err
	}
	return usagedomain.NewCalendar(loc), nil
}
