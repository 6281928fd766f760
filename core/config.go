package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	AppConfig struct {
		Name             string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		DefaultFromEmail mail.Address
		FrontendBaseURL  string
		// NotifyEmails receive the ledger activity digest.
		NotifyEmails []string
	}

	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ReadTimeout        time.Duration
		WriteTimeout       time.Duration
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		OverdueScheduler   bool
		OverdueHour        int // UTC hour of the daily overdue sweep
	}

	DatabaseConfig struct {
		Storage       string // postgres | memory
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	LedgerConfig struct {
		GenerateBatchSize int
		AllowOverpayment  bool
	}

	ReportConfig struct {
		CacheTTL time.Duration
	}

	KafkaConfig struct {
		Brokers     []string
		TopicPrefix string
	}

	Config struct {
		Env            string
		WorkDir        string
		App            AppConfig
		Server         ServerConfig
		Database       DatabaseConfig
		Ledger         LedgerConfig
		Report         ReportConfig
		Kafka          KafkaConfig
		RedisURL       string
		RollbarToken   string
		SendgridApiKey string
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// UseMemory reports whether the in-memory repositories should back the app.
func (db DatabaseConfig) UseMemory() bool {
	return db.Storage == "memory"
}

// NewConfig builds the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Bursar")
	conf.SetDefault("build", "dev")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("secretKey", "k9#v2d@b!x7q$m1r&w4z^e8t*y3u(p6n)h0j%f5g-c+s=l")
	conf.SetDefault("defaultFromName", "Bursar")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("notifyEmails", []string{})

	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverAddress", ":8000")
	conf.SetDefault("serverDebugHost", ":4000")
	conf.SetDefault("serverReadTimeout", 5*time.Second)
	conf.SetDefault("serverWriteTimeout", 10*time.Second)
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("overdueScheduler", false)
	conf.SetDefault("overdueHour", 1)

	conf.SetDefault("dbStorage", "postgres")
	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbName", "bursar")
	conf.SetDefault("dbUser", "bursar")
	conf.SetDefault("dbPassword", "")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("ledgerGenerateBatchSize", 500)
	conf.SetDefault("ledgerAllowOverpayment", false)
	conf.SetDefault("reportCacheTTL", 5*time.Minute)

	conf.SetDefault("kafkaBrokers", []string{})
	conf.SetDefault("kafkaTopicPrefix", "bursar")
	conf.SetDefault("redisURL", "")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("dbStorage", "memory")
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	batchSize := conf.GetInt("ledgerGenerateBatchSize")
	if batchSize <= 0 {
		batchSize = 500
	}

	return &Config{
		Env:     env,
		WorkDir: wd,
		App: AppConfig{
			Name:      conf.GetString("appName"),
			Build:     conf.GetString("build"),
			Debug:     conf.GetBool("debug"),
			TestMode:  conf.GetBool("testMode"),
			SecretKey: conf.GetString("secretKey"),
			DefaultFromEmail: mail.Address{
				Name:    conf.GetString("defaultFromName"),
				Address: conf.GetString("defaultFromEmail"),
			},
			FrontendBaseURL: conf.GetString("frontendBaseURL"),
			NotifyEmails:    splitList(conf.GetStringSlice("notifyEmails")),
		},
		Server: ServerConfig{
			Host:               conf.GetString("serverHost"),
			Address:            conf.GetString("serverAddress"),
			DebugHost:          conf.GetString("serverDebugHost"),
			ReadTimeout:        conf.GetDuration("serverReadTimeout"),
			WriteTimeout:       conf.GetDuration("serverWriteTimeout"),
			ShutdownTimeout:    conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("jwtExpirationDelta"),
			OverdueScheduler:   conf.GetBool("overdueScheduler"),
			OverdueHour:        conf.GetInt("overdueHour"),
		},
		Database: DatabaseConfig{
			Storage:       conf.GetString("dbStorage"),
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Ledger: LedgerConfig{
			GenerateBatchSize: batchSize,
			AllowOverpayment:  conf.GetBool("ledgerAllowOverpayment"),
		},
		Report: ReportConfig{
			CacheTTL: conf.GetDuration("reportCacheTTL"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(conf.GetStringSlice("kafkaBrokers")),
			TopicPrefix: conf.GetString("kafkaTopicPrefix"),
		},
		RedisURL:       conf.GetString("redisURL"),
		RollbarToken:   conf.GetString("rollbarToken"),
		SendgridApiKey: conf.GetString("sendgridApiKey"),
	}
}

// splitList flattens comma separated env values ("a,b" comes in as a single item).
func splitList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s) env=%s storage=%s", c.App.Name, c.App.Build, c.Env, c.Database.Storage)
}
