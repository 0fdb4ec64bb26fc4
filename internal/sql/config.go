package sql

import (
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

type databaseConfig struct {
	Hostname       string        `env:"DATABASE_HOST, default=localhost"`
	Port           string        `env:"DATABASE_PORT, default=3306"`
	Username       string        `env:"DATABASE_USER, default=mysql"`
	Password       string        `env:"DATABASE_PASSWORD, default=mysql"`
	Database       string        `env:"DATABASE_NAME, default=attendance"`
	ConnectTimeout time.Duration `env:"DATABASE_CONNECT_TIMEOUT, default=5s"`
	QueryTimeout   time.Duration `env:"DATABASE_QUERY_TIMEOUT, default=10s"`
	Migrate        bool          `env:"DATABASE_MIGRATE, default=true"`
}

func (c *databaseConfig) mysqlDsn() string {
	config := mysql.NewConfig()
	config.User = c.Username
	config.Passwd = c.Password
	config.Net = "tcp"
	config.Addr = net.JoinHostPort(c.Hostname, c.Port)
	config.DBName = c.Database
	config.ParseTime = true
	config.Loc = time.UTC
	config.Timeout = c.ConnectTimeout
	return config.FormatDSN()
}

func (c *databaseConfig) postgresDsn() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.Hostname, c.Port, c.Username, c.Password, c.Database)
}
