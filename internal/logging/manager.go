package logging

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Компоненты сервера
const (
	ComponentServer   = "server"
	ComponentMining   = "mining"
	ComponentStorage  = "storage"
	ComponentAPI      = "api"
	ComponentEventBus = "eventbus"
)

// componentRegistry хранит логгеры компонентов и их уровни вывода в консоль
type componentRegistry struct {
	mu        sync.Mutex
	loggers   map[string]*Logger
	baseLevel LogLevel
	overrides map[string]LogLevel
}

var components = &componentRegistry{
	loggers:   make(map[string]*Logger),
	baseLevel: INFO,
	overrides: make(map[string]LogLevel),
}

func (r *componentRegistry) levelFor(component string) LogLevel {
	if lvl, ok := r.overrides[component]; ok {
		return lvl
	}
	return r.baseLevel
}

// Component возвращает логгер компонента, создавая его при первом обращении.
// Если файл логов открыть не удалось, логгер пишет только в stdout.
func Component(name string) *Logger {
	r := components
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[name]; ok {
		return l
	}

	l, err := NewLogger(name)
	if err != nil {
		current().Warn("⚠️ Логгер %s работает без файла: %v", name, err)
		l = &Logger{
			component:     name,
			consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
			minFileLevel:  ERROR,
		}
	}
	l.minConsoleLevel = r.levelFor(name)
	r.loggers[name] = l
	return l
}

// ConfigureLevels задаёт базовый уровень и уровни отдельных компонентов
// ("mining": "debug"). Уже созданные логгеры перенастраиваются сразу,
// логгер по умолчанию получает базовый уровень.
func ConfigureLevels(base LogLevel, overrides map[string]string) {
	r := components
	r.mu.Lock()
	r.baseLevel = base
	r.overrides = make(map[string]LogLevel, len(overrides))
	for name, lvl := range overrides {
		r.overrides[strings.ToLower(name)] = ParseLevel(lvl)
	}
	for name, l := range r.loggers {
		l.SetLevel(r.levelFor(name))
	}
	r.mu.Unlock()

	current().SetLevel(base)
}

// ComponentLevels возвращает текущие уровни созданных логгеров, отсортированные по имени
func ComponentLevels() []string {
	r := components
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		out = append(out, fmt.Sprintf("%s=%s", name, r.levelFor(name)))
	}
	sort.Strings(out)
	return out
}

// CloseComponents закрывает файлы логов всех компонентов.
// Следующий вызов Component создаст логгер заново.
func CloseComponents() error {
	r := components
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, l := range r.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", name, err))
		}
	}
	r.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

func GetServerLogger() *Logger   { return Component(ComponentServer) }
func GetMiningLogger() *Logger   { return Component(ComponentMining) }
func GetStorageLogger() *Logger  { return Component(ComponentStorage) }
func GetAPILogger() *Logger      { return Component(ComponentAPI) }
func GetEventBusLogger() *Logger { return Component(ComponentEventBus) }
