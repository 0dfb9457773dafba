package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSNPostgres(t *testing.T) {
	d := DatabaseConfig{Driver: "postgres", Host: "db", Port: "5432", User: "u", Password: "p", DBName: "chat", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=chat sslmode=disable TimeZone=UTC", d.DSN())
}

func TestDSNMySQL(t *testing.T) {
	d := DatabaseConfig{Driver: "mysql", Host: "db", Port: "3306", User: "u", Password: "p", DBName: "chat"}
	assert.Equal(t, "u:p@tcp(db:3306)/chat?charset=utf8mb4&parseTime=True&loc=UTC", d.DSN())
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
}

func TestChatLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, ChatConfig{}.Location())
	assert.Equal(t, time.UTC, ChatConfig{TimeZone: "Not/AZone"}.Location())
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "sqlite"},
		Realtime: RealtimeConfig{Driver: "redis"},
		JWT:      JWTConfig{Secret: "s"},
	}
	assert.Error(t, cfg.validate())

	cfg.Database.Driver = "postgres"
	cfg.Realtime.Driver = "carrier-pigeon"
	assert.Error(t, cfg.validate())

	cfg.Realtime.Driver = "memory"
	assert.NoError(t, cfg.validate())

	cfg.JWT.Secret = ""
	assert.Error(t, cfg.validate())
}
