package task

import (
	"fmt"
	"sync"

	"github.com/haierkeys/fast-note-anchor/internal/app"
)

// TaskFactory 根据 App Container 创建任务
// 返回 (nil, nil) 表示该任务在当前配置下被禁用
type TaskFactory func(appContainer *app.App) (Task, error)

type registration struct {
	name    string
	factory TaskFactory
}

var (
	registry   []registration
	registryMu sync.RWMutex
)

// RegisterWithApp 在任务文件的 init() 中登记工厂，名称重复时 panic
func RegisterWithApp(name string, factory TaskFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, r := range registry {
		if r.name == name {
			panic(fmt.Sprintf("task %q registered twice", name))
		}
	}
	registry = append(registry, registration{name: name, factory: factory})
}

// Registered 按登记顺序返回任务名
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for _, r := range registry {
		names = append(names, r.name)
	}
	return names
}

func registrations() []registration {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return append([]registration(nil), registry...)
}
