package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/leakcoach/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(cfg.DueLimit, convey.ShouldEqual, 50)
			convey.So(cfg.RefillCron, convey.ShouldEqual, "0 4 * * *")
			convey.So(cfg.RefillWorkers, convey.ShouldEqual, 4)
			convey.So(cfg.DueGaugeInterval(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.DBMaxOpenConns, convey.ShouldEqual, 10)
			convey.So(cfg.DBMigrate, convey.ShouldBeTrue)
			convey.So(cfg.JobTimeout(), convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with a single bad field", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":          func(c *config.Config) { c.Addr = "" },
			"empty dsn":           func(c *config.Config) { c.DBDSN = "" },
			"unknown driver":      func(c *config.Config) { c.DBDriver = "mysql" },
			"zero due limit":      func(c *config.Config) { c.DueLimit = 0 },
			"zero gauge interval": func(c *config.Config) { c.DueGaugeIntervalS = 0 },
			"zero refill workers": func(c *config.Config) { c.RefillWorkers = 0 },
			"zero pool size":      func(c *config.Config) { c.DBMaxOpenConns = 0 },
			"zero job timeout":    func(c *config.Config) { c.JobTimeoutS = 0 },
			"refill without cron": func(c *config.Config) { c.RefillCron = "" },
			"unknown log format":  func(c *config.Config) { c.LogFormat = "xml" },
		}

		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)
			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then an empty cron is fine when refill is off", func() {
			cfg := config.New()
			cfg.RefillEnabled = false
			cfg.RefillCron = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
