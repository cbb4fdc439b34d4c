// Package config 加载数据库、查询策略与日志配置
//
// 来源优先级：环境变量 > 配置文件 > 默认值。
// 环境变量名为 <PREFIX>_<SECTION>_<KEY>，例如 MP_QUERY_DEFAULT_LIMIT。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/menu-planning/backend-sub003/data/db"
	"github.com/menu-planning/backend-sub003/data/orm/query"
	"github.com/menu-planning/backend-sub003/errors"
	"github.com/menu-planning/backend-sub003/logging"
)

// Config 应用配置
type Config struct {
	Database db.DBConfig  `mapstructure:"database"`
	Query    query.Policy `mapstructure:"query"`
	Log      Log          `mapstructure:"log"`
}

// Log 日志配置
type Log struct {
	Level  string `mapstructure:"level"`
	Prefix string `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.database", "mealplanning.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)

	v.SetDefault("query.default_limit", query.DefaultLimit)
	v.SetDefault("query.max_limit", 0)
	v.SetDefault("query.allow_ambiguous_keys", false)
	v.SetDefault("query.lenient_sort", false)
	v.SetDefault("query.persist_concurrency", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.prefix", "")
}

// Load 读取配置；path 为空时只使用默认值与环境变量
func Load(path, envPrefix string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapError(err, errors.ErrCodeConfig, fmt.Sprintf("读取配置文件 %s 失败", path))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrCodeConfig, "解析配置失败")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return errors.NewError(errors.ErrCodeConfig, "database.driver 不能为空")
	}
	if c.Database.DSN == "" && c.Database.Database == "" {
		return errors.NewError(errors.ErrCodeConfig, "database.dsn 与 database.database 至少设置一个")
	}
	if err := c.Query.Validate(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.WrapError(err, errors.ErrCodeConfig, "log.level 无效")
	}
	return nil
}

// Logger 按配置构造标准 Logger
func (c *Config) Logger() logging.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = logging.InfoLevel
	}
	return logging.NewStdLogger(c.Log.Prefix).WithLevel(level)
}
