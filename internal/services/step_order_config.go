package services

import (
	"context"
	"fmt"
	"os"

	"github.com/Jooldo/zarify-sub003/internal/store"

	"gopkg.in/yaml.v3"
)

// stepOrderFile формат файла STEP_ORDER_CONFIG_FILE:
//
//	default: [Jhalai, Dhol, Casting, Polish]
//	tenants:
//	  <merchant_id>: [Jhalai, Casting, Polish]
//
// Порядок этапа = позиция в списке, начиная с 1
type stepOrderFile struct {
	Default []string            `yaml:"default"`
	Tenants map[string][]string `yaml:"tenants"`
}

// YAMLStepOrderProvider последовательность этапов из YAML-файла
type YAMLStepOrderProvider struct {
	defaults map[string]int
	tenants  map[string]map[string]int
}

var _ store.StepOrderProvider = (*YAMLStepOrderProvider)(nil)

// LoadStepOrderFile читает и проверяет файл с последовательностью этапов
func LoadStepOrderFile(path string) (*YAMLStepOrderProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла этапов %s: %w", path, err)
	}
	return ParseStepOrderConfig(data)
}

// ParseStepOrderConfig разбирает YAML с последовательностью этапов
func ParseStepOrderConfig(data []byte) (*YAMLStepOrderProvider, error) {
	var file stepOrderFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации этапов: %w", err)
	}

	defaults, err := stepSequence(file.Default)
	if err != nil {
		return nil, fmt.Errorf("default: %w", err)
	}
	provider := &YAMLStepOrderProvider{
		defaults: defaults,
		tenants:  make(map[string]map[string]int, len(file.Tenants)),
	}
	for tenant, steps := range file.Tenants {
		sequence, err := stepSequence(steps)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", tenant, err)
		}
		provider.tenants[tenant] = sequence
	}
	return provider, nil
}

func stepSequence(steps []string) (map[string]int, error) {
	sequence := make(map[string]int, len(steps))
	for i, name := range steps {
		if name == "" {
			return nil, fmt.Errorf("%w: empty step name at position %d", ErrValidation, i+1)
		}
		if _, dup := sequence[name]; dup {
			return nil, fmt.Errorf("%w: duplicate step %q", ErrValidation, name)
		}
		sequence[name] = i + 1
	}
	return sequence, nil
}

// GetStepOrderConfig отдает последовательность мерчанта или последовательность по умолчанию
func (p *YAMLStepOrderProvider) GetStepOrderConfig(_ context.Context, tenant string) (map[string]int, error) {
	source := p.defaults
	if sequence, ok := p.tenants[tenant]; ok {
		source = sequence
	}
	config := make(map[string]int, len(source))
	for name, order := range source {
		config[name] = order
	}
	return config, nil
}
