package policy

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch 监听策略文件变更并热加载到 store，直到 ctx 取消
// 加载失败（如 YAML 语法错误）只记录日志，保留旧策略
func Watch(ctx context.Context, path string, store *Store, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	logger.Info("Watching escalation policy file",
		zap.String("path", path),
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// 编辑器常用原子保存（rename），所以 Create 也要处理
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			p, err := Load(path)
			if err != nil {
				logger.Error("Failed to reload escalation policy, keeping previous",
					zap.String("path", path),
					zap.Error(err),
				)
				continue
			}

			store.Replace(p)
			logger.Info("Escalation policy reloaded",
				zap.String("path", path),
			)

			// 原子保存可能替换了 inode，重新加入监听
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("Policy watcher error",
				zap.Error(err),
			)
		}
	}
}
