package logging

import (
	"fmt"
	"slices"
	"sync"
)

// Компоненты, у которых есть собственный файл журнала.
const (
	ComponentStorage = "storage"
	ComponentSearch  = "search"
	ComponentAPI     = "api"
)

// LoggerManager хранит логгеры компонентов: на каждый компонент
// создаётся ровно один Logger со своим файлом.
type LoggerManager struct {
	mu     sync.Mutex
	byName map[string]*Logger
}

var defaultManager = sync.OnceValue(NewLoggerManager)

// GetLoggerManager возвращает общий для процесса менеджер.
func GetLoggerManager() *LoggerManager {
	return defaultManager()
}

// NewLoggerManager создаёт независимый менеджер.
func NewLoggerManager() *LoggerManager {
	return &LoggerManager{byName: make(map[string]*Logger)}
}

// GetLogger возвращает логгер компонента; при первом обращении
// логгер создаётся с текущими настройками InitLogger.
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.byName[component]; ok {
		return l, nil
	}
	l, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер компонента %s: %w", component, err)
	}
	lm.byName[component] = l
	return l, nil
}

// MustGetLogger не возвращает ошибку: если файл журнала открыть
// не удалось, компонент пишет только в консоль.
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	if l, err := lm.GetLogger(component); err == nil {
		return l
	}
	return consoleOnly(component)
}

func consoleOnly(component string) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   defaultLogger.consoleLogger,
		minConsoleLevel: INFO,
		minFileLevel:    ERROR + 1,
	}
}

// CloseAll закрывает файлы всех компонентов и забывает их логгеры.
// Возвращается первая ошибка закрытия.
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	loggers := lm.byName
	lm.byName = make(map[string]*Logger)
	lm.mu.Unlock()

	var first error
	for name, l := range loggers {
		if err := l.Close(); err != nil && first == nil {
			first = fmt.Errorf("закрытие логгера %s: %w", name, err)
		}
	}
	return first
}

// ListComponents возвращает имена компонентов по алфавиту.
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names := make([]string, 0, len(lm.byName))
	for name := range lm.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetLogLevel меняет пороги уже созданного логгера компонента.
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.Lock()
	l, ok := lm.byName[component]
	lm.mu.Unlock()

	if !ok {
		return fmt.Errorf("логгер компонента %s не создан", component)
	}
	l.SetLevels(consoleLevel, fileLevel)
	return nil
}

// GetComponentLogger — логгер компонента из общего менеджера.
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetStorageLogger() *Logger { return GetComponentLogger(ComponentStorage) }
func GetSearchLogger() *Logger  { return GetComponentLogger(ComponentSearch) }
func GetAPILogger() *Logger     { return GetComponentLogger(ComponentAPI) }
