package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/groupledger/internal/accountlink"
	"github.com/smallbiznis/groupledger/internal/audit"
	"github.com/smallbiznis/groupledger/internal/bridge"
	"github.com/smallbiznis/groupledger/internal/clock"
	"github.com/smallbiznis/groupledger/internal/config"
	"github.com/smallbiznis/groupledger/internal/cycle"
	"github.com/smallbiznis/groupledger/internal/events"
	"github.com/smallbiznis/groupledger/internal/interest"
	"github.com/smallbiznis/groupledger/internal/ledger"
	"github.com/smallbiznis/groupledger/internal/loan"
	"github.com/smallbiznis/groupledger/internal/migration"
	"github.com/smallbiznis/groupledger/internal/observability"
	"github.com/smallbiznis/groupledger/internal/scheduler"
	"github.com/smallbiznis/groupledger/internal/server"
	"github.com/smallbiznis/groupledger/internal/shareout"
	"github.com/smallbiznis/groupledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		fx.Decorate(func(cfg config.Config) config.Config {
			if cfg.ServiceVersion == "" || cfg.ServiceVersion == "dev" {
				cfg.ServiceVersion = version
			}
			return cfg
		}),
		observability.Module,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, log *zap.Logger) error {
			if err := migration.Run(conn); err != nil {
				return err
			}
			log.Info("database migrated", zap.String("version", version))
			return nil
		}),
		clock.Module,
		events.Module,
		audit.Module,
		ledger.Module,
		accountlink.Module,
		loan.Module,
		interest.Module,
		cycle.Module,
		shareout.Module,
		bridge.Module,
		scheduler.Module,
		server.Module,
	)
	app.Run()
}
