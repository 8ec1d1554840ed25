package activity

import (
	"github.com/smallbiznis/wadesk/internal/activity/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("activity",
	fx.Provide(repository.Provide),
)
