package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadConfigMergesEnvironment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
redis:
  addr: localhost:6379
  db: 0
classifier:
  default_url: http://localhost:5000/categorize
`)
	writeFile(t, dir, "production.yaml", `
redis:
  addr: redis:6379
`)

	cfg, err := LoadConfig("production", dir)
	require.NoError(t, err)

	var out struct {
		Redis      RedisConfig `yaml:"redis"`
		Classifier struct {
			DefaultURL string `yaml:"default_url"`
		} `yaml:"classifier"`
	}
	require.NoError(t, Decode(cfg, &out))
	assert.Equal(t, "redis:6379", out.Redis.Addr)
	assert.Equal(t, "http://localhost:5000/categorize", out.Classifier.DefaultURL)
}

func TestLoadConfigMissingEnvFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \"8090\"\n")

	cfg, err := LoadConfig("staging", dir)
	require.NoError(t, err)

	var out struct {
		Server ServerConfig `yaml:"server"`
	}
	require.NoError(t, Decode(cfg, &out))
	assert.Equal(t, "8090", out.Server.Port)
}

func TestLoadConfigMissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfigSubstitutesSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
jwt:
  secret: ${JWT_SIGNING_KEY}
redis:
  password: ${TRIAGE_TEST_REDIS_PASSWORD}
`)
	writeFile(t, dir, "secrets.env", `
# comment
JWT_SIGNING_KEY="s3cret"
`)
	t.Setenv("TRIAGE_TEST_REDIS_PASSWORD", "from-env")

	cfg, err := LoadConfig("local", dir)
	require.NoError(t, err)

	var out struct {
		JWT   JWTConfig   `yaml:"jwt"`
		Redis RedisConfig `yaml:"redis"`
	}
	require.NoError(t, Decode(cfg, &out))
	assert.Equal(t, "s3cret", out.JWT.Secret)
	assert.Equal(t, "from-env", out.Redis.Password)
}

func TestMergeMapsNested(t *testing.T) {
	dst := map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2},
		"b": "keep",
	}
	src := map[string]interface{}{
		"a": map[string]interface{}{"y": 3},
	}

	merged := mergeMaps(dst, src)
	assert.Equal(t, map[string]interface{}{"x": 1, "y": 3}, merged["a"])
	assert.Equal(t, "keep", merged["b"])
	// dst 不应被修改
	assert.Equal(t, 2, dst["a"].(map[string]interface{})["y"])
}

func TestOverrideFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DB_ENABLED", "true")
	t.Setenv("DB_PORT", "6543")

	var redisCfg RedisConfig
	OverrideRedisFromEnv(&redisCfg)
	assert.Equal(t, "cache:6380", redisCfg.Addr)
	assert.Equal(t, 3, redisCfg.DB)

	var dbCfg DBConfig
	OverrideDBFromEnv(&dbCfg)
	assert.True(t, dbCfg.Enabled)
	assert.Equal(t, 6543, dbCfg.Port)
}
