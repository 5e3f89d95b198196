package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		SecretKey    string
		RollbarToken string
		Server       struct {
			Host                      string
			Address                   string
			DebugHost                 string
			ShutdownTimeout           time.Duration
			JWTExpirationDelta        time.Duration
			JWTRefreshExpirationDelta time.Duration
		}
		Database struct {
			// Engine is one of postgres, sqlite or memory.
			Engine     string
			Driver     string
			Host       string
			Port       string
			User       string
			Password   string
			Name       string
			DisableTLS bool
			Path       string
		}
		Reports struct {
			Dir        string
			S3Bucket   string
			S3Prefix   string
			S3Region   string
			S3Endpoint string
		}
	}
)

// NewConfig reads the configuration from the environment.
// Variables are prefixed with the environment name: DEV_DB_HOST, PROD_SECRETKEY, ...
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Kaushal")
	v.SetDefault("secretKey", "k4u$hal-d3v-s3cr3t-(never)-use-in-pr0d!")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "http://localhost:8000")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("db.engine", "postgres")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "kaushal")
	v.SetDefault("db.disableTLS", true)
	v.SetDefault("db.path", "kaushal.db")

	v.SetDefault("reports.dir", ".")
	v.SetDefault("reports.s3Bucket", "")
	v.SetDefault("reports.s3Prefix", "reports")
	v.SetDefault("reports.s3Region", "ap-south-1")
	v.SetDefault("reports.s3Endpoint", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("db.engine", "memory")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd(): %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
	}

	conf.Server.Host = v.GetString("server.host")
	conf.Server.Address = v.GetString("server.address")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")

	conf.Database.Engine = strings.ToLower(v.GetString("db.engine"))
	conf.Database.Driver = strings.ToLower(v.GetString("db.driver"))
	conf.Database.Host = v.GetString("db.host")
	conf.Database.Port = v.GetString("db.port")
	conf.Database.User = v.GetString("db.user")
	conf.Database.Password = v.GetString("db.password")
	conf.Database.Name = v.GetString("db.name")
	conf.Database.DisableTLS = v.GetBool("db.disableTLS")
	conf.Database.Path = v.GetString("db.path")

	conf.Reports.Dir = v.GetString("reports.dir")
	conf.Reports.S3Bucket = v.GetString("reports.s3Bucket")
	conf.Reports.S3Prefix = v.GetString("reports.s3Prefix")
	conf.Reports.S3Region = v.GetString("reports.s3Region")
	conf.Reports.S3Endpoint = v.GetString("reports.s3Endpoint")

	return conf
}

// NewTestConfig returns a config suitable for tests: memory store, test mode and a fixed secret.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Env = "TEST"
	conf.TestMode = true
	conf.Debug = true
	conf.SecretKey = "test-secret"
	conf.Database.Engine = "memory"
	return conf
}
