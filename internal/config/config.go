// Package config загружает настройки клиента и сервера.
// Приоритет: значения по умолчанию < YAML файл < переменные SHOETRACK_* < флаги.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix префикс переменных окружения
const EnvPrefix = "SHOETRACK"

// ErrInvalidConfig некорректное значение настройки
var ErrInvalidConfig = errors.New("invalid config")

// flagBinding связывает ключ viper с именем флага
type flagBinding struct {
	key  string
	flag string
}

// newViper создаёт viper с env и, если задан, файлом конфигурации
func newViper(configFile string, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	// sync.max_retries -> SHOETRACK_SYNC_MAX_RETRIES
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// bindFlags привязывает только объявленные флаги; значения флагов
// перекрывают env и файл, только если флаг был задан явно
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings []flagBinding) error {
	if fs == nil {
		return nil
	}
	for _, b := range bindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", b.flag, err)
		}
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...))
}
