package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SHIPPING_FLAT", "")
	t.Setenv("RATE_LIMIT_RPS", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "100", cfg.ShippingFlat.String())
	assert.Equal(t, "INR", cfg.Currency)
	assert.Equal(t, float64(5), cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.LowStockThreshold)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SHIPPING_FLAT", "49.50")
	t.Setenv("CORS_ORIGINS", "https://shop.example, ,https://admin.example")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	t.Setenv("LOW_STOCK_THRESHOLD", "2")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "49.5", cfg.ShippingFlat.String())
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, 2, cfg.LowStockThreshold)
}

func TestLoad_BadShippingFallsBack(t *testing.T) {
	t.Setenv("SHIPPING_FLAT", "free")
	assert.Equal(t, "100", Load().ShippingFlat.String())
}
