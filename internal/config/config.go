package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const DefaultPath = "./config/application.yaml"

type Application struct {
	Host      string    `koanf:"host"`
	Port      int       `koanf:"port"`
	Database  Database  `koanf:"db"`
	Scheduler Scheduler `koanf:"scheduler"`
	Overdue   Overdue   `koanf:"overdue"`
	Alerts    Alerts    `koanf:"alerts"`
}

type Database struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Scheduler struct {
	// ResumeThrottle is the minimum time between two passes started by a foreground resume.
	ResumeThrottle time.Duration `koanf:"resumethrottle"`
}

type Overdue struct {
	// HighAmountThreshold promotes a fresh overdue occurrence to high priority when its amount exceeds it.
	HighAmountThreshold string `koanf:"highamountthreshold"`
}

type Alerts struct {
	Retention int `koanf:"retention"`
}

// HighAmount parses the configured threshold, falling back to the default when it is malformed.
func (o Overdue) HighAmount() decimal.Decimal {
	value, err := decimal.NewFromString(o.HighAmountThreshold)
	if err != nil {
		log.Warnf("invalid overdue.highamountthreshold %q, using 100000: %v", o.HighAmountThreshold, err)
		return decimal.NewFromInt(100_000)
	}
	return value
}

func defaults() Application {
	return Application{
		Host: "http://localhost:8181",
		Port: 8181,
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "pennywise",
			Pass:   "",
			Name:   "pennywise",
			Schema: "pennywise",
		},
		Scheduler: Scheduler{
			ResumeThrottle: 5 * time.Minute,
		},
		Overdue: Overdue{
			HighAmountThreshold: "100000",
		},
		Alerts: Alerts{
			Retention: 50,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "PENNYWISE_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "PENNYWISE_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	if app.Alerts.Retention <= 0 {
		app.Alerts.Retention = 50
	}

	return app, nil
}
