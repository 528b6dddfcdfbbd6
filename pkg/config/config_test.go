package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "UTC", cfg.Scheduler.Timezone)
	assert.Equal(t, "day", cfg.Scheduler.DefaultShift)
	assert.Equal(t, 26, cfg.Scheduler.MaxWeeks)
	assert.Equal(t, time.Hour, cfg.Scheduler.RunTTL)
	assert.Equal(t, 5*time.Minute, cfg.Loads.CacheTTL)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 30*time.Second, cfg.JWT.Leeway)
	assert.Empty(t, cfg.JWT.Issuer)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_MAX_WEEKS", 0)
	v.Set("SCHEDULER_RUN_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("SCHEDULER_TIMEZONE", "America/Santiago")
	v.Set("JWT_ISSUER", "timetable-auth")
	v.Set("JWT_LEEWAY", "5s")

	cfg := fromViper(v)

	assert.Equal(t, 26, cfg.Scheduler.MaxWeeks)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.RunTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "America/Santiago", cfg.Scheduler.Timezone)
	assert.Equal(t, "timetable-auth", cfg.JWT.Issuer)
	assert.Equal(t, 5*time.Second, cfg.JWT.Leeway)
}
